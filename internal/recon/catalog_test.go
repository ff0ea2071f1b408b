package recon_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medistock/m/internal/recon"
)

func testCatalog() *recon.Catalog {
	return recon.NewCatalog([]recon.Entry{
		{ID: 1, Name: "MISCELLANEOUS"},
		{ID: 2, Name: "Napa 500mg"},
		{ID: 3, Name: "Seclo 20mg"},
		{ID: 4, Name: "Napa Extend 665mg"},
		{ID: 5, Name: "Monas 10mg"},
	})
}

func TestCatalogFindByID(t *testing.T) {
	c := testCatalog()

	entry, ok := c.FindByID(3)
	require.True(t, ok)
	assert.Equal(t, "Seclo 20mg", entry.Name)

	_, ok = c.FindByID(99)
	assert.False(t, ok)
}

func TestCatalogFindByNameIsCaseSensitive(t *testing.T) {
	c := testCatalog()

	entry, ok := c.FindByName("Napa 500mg")
	require.True(t, ok)
	assert.Equal(t, int64(2), entry.ID)

	_, ok = c.FindByName("napa 500mg")
	assert.False(t, ok, "exact lookup must not fold case")
}

func TestCatalogSearch(t *testing.T) {
	c := testCatalog()

	tests := []struct {
		name    string
		query   string
		limit   int
		wantIDs []int64
	}{
		{name: "case-insensitive substring", query: "napa", limit: 10, wantIDs: []int64{2, 4}},
		{name: "catalog order preserved", query: "0m", limit: 10, wantIDs: []int64{2, 3, 5}},
		{name: "limit truncates", query: "0m", limit: 2, wantIDs: []int64{2, 3}},
		{name: "empty query matches all", query: "", limit: 10, wantIDs: []int64{1, 2, 3, 4, 5}},
		{name: "no match", query: "zzz", limit: 10, wantIDs: []int64{}},
		{name: "zero limit", query: "napa", limit: 0, wantIDs: []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Search(tt.query, tt.limit)
			ids := make([]int64, 0, len(got))
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestCatalogMiscellaneousSentinel(t *testing.T) {
	c := testCatalog()
	assert.True(t, c.IsMiscellaneous(1))
	assert.False(t, c.IsMiscellaneous(2))
}

func TestCatalogIgnoresDuplicateIDs(t *testing.T) {
	c := recon.NewCatalog([]recon.Entry{
		{ID: 2, Name: "First"},
		{ID: 2, Name: "Second"},
	})
	require.Equal(t, 1, c.Len())
	entry, ok := c.FindByID(2)
	require.True(t, ok)
	assert.Equal(t, "First", entry.Name)
}
