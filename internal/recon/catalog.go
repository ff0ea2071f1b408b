package recon

import "strings"

// MiscellaneousID is the reserved catalog id for the cost-adjustment
// pseudo-entry. It is never a real stock item and never carries a quantity.
const MiscellaneousID int64 = 1

// Entry is one row of the medicine catalog.
type Entry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Catalog is an immutable, ordered medicine list. Lookups never mutate it, so
// a single Catalog may be shared across requests.
type Catalog struct {
	entries []Entry
	byID    map[int64]int
}

// NewCatalog builds a Catalog from the given entries, preserving their order.
// Later duplicates of an id are ignored.
func NewCatalog(entries []Entry) *Catalog {
	c := &Catalog{
		entries: make([]Entry, 0, len(entries)),
		byID:    make(map[int64]int, len(entries)),
	}
	for _, e := range entries {
		if _, ok := c.byID[e.ID]; ok {
			continue
		}
		c.byID[e.ID] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c
}

// FindByID returns the entry with the given id.
func (c *Catalog) FindByID(id int64) (Entry, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return Entry{}, false
	}
	return c.entries[idx], true
}

// FindByName returns the entry whose name matches exactly, case-sensitive.
func (c *Catalog) FindByName(name string) (Entry, bool) {
	for _, e := range c.entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Search returns at most limit entries whose name contains query,
// case-insensitive, in catalog order. An empty query matches everything.
func (c *Catalog) Search(query string, limit int) []Entry {
	if limit <= 0 {
		return nil
	}
	query = strings.ToLower(query)
	results := make([]Entry, 0, limit)
	for _, e := range c.entries {
		if query != "" && !strings.Contains(strings.ToLower(e.Name), query) {
			continue
		}
		results = append(results, e)
		if len(results) == limit {
			break
		}
	}
	return results
}

// IsMiscellaneous reports whether id is the adjustment sentinel.
func (c *Catalog) IsMiscellaneous(id int64) bool {
	return id == MiscellaneousID
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}
