package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"medistock/m/domain"
	"medistock/m/internal/recon"
)

type ctxKey string

const (
	ctxUserID ctxKey = "userID"
	ctxRole   ctxKey = "role"
)

const dateLayout = "2006-01-02"

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db        *sqlx.DB
	secret    string
	uploadDir string
	now       func() time.Time
}

// New constructs a Handler.
func New(db *sqlx.DB, secret, uploadDir string) *Handler {
	return &Handler{db: db, secret: secret, uploadDir: uploadDir, now: time.Now}
}

// NewAt constructs a Handler with an injected clock for date defaults.
func NewAt(db *sqlx.DB, secret, uploadDir string, now func() time.Time) *Handler {
	return &Handler{db: db, secret: secret, uploadDir: uploadDir, now: now}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(h.uploadDir))))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/reset-password", h.resetPassword)
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/users", func(r chi.Router) {
			r.Get("/", h.listUsers)
			r.Put("/{id}/role", h.updateUserRole)
		})

		pr.Get("/medicines", h.searchMedicines)

		pr.Route("/batches", func(r chi.Router) {
			r.Post("/preview", h.previewBatch)
			r.Post("/", h.createBatch)
			r.Put("/{id}", h.updateBatch)
			r.Get("/", h.listBatches)
			r.Get("/{id}", h.getBatch)
		})

		pr.Route("/inventory", func(r chi.Router) {
			r.Get("/", h.listInventory)
			r.Post("/{id}/stock", h.updateStock)
			r.Get("/expiry-alert", h.expiryAlerts)
		})

		pr.Post("/attachments", h.uploadAttachment)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Authentication helpers

type authClaims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(userID int64, role string) (string, error) {
	claims := authClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok {
			respondError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	role := r.Context().Value(ctxRole)
	if role == nil {
		respondError(w, http.StatusUnauthorized, "missing role")
		return false
	}
	current := role.(string)
	for _, allowedRole := range allowed {
		if current == allowedRole {
			return true
		}
	}
	respondError(w, http.StatusForbidden, "insufficient permissions")
	return false
}

// Auth Handlers

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" || req.Role == "" {
		respondError(w, http.StatusBadRequest, "username, email, password and role are required")
		return
	}

	if req.Role != "admin" && req.Role != "pharmacist" {
		respondError(w, http.StatusBadRequest, "role must be admin or pharmacist")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}

	var userID int64
	err = h.db.QueryRowx(`INSERT INTO users (username, email, password, role) VALUES ($1, $2, $3, $4) RETURNING id`,
		req.Username, strings.ToLower(req.Email), hashed, req.Role).Scan(&userID)
	if err != nil {
		respondError(w, http.StatusConflict, "email already exists")
		return
	}

	token, err := h.generateToken(userID, req.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	respondJSON(w, http.StatusCreated, authResponse{Token: token, User: domain.User{ID: userID, Username: req.Username, Email: strings.ToLower(req.Email), Role: req.Role}})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var user domain.User
	err := h.db.Get(&user, `SELECT id, username, email, password, role FROM users WHERE email = $1`, strings.ToLower(req.Email))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.generateToken(user.ID, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	user.Password = ""
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.NewPassword == "" {
		respondError(w, http.StatusBadRequest, "new_password is required")
		return
	}
	uid := r.Context().Value(ctxUserID).(int64)
	hashed, err := bcrypt.GenerateFromPassword([]byte(payload.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}
	if _, err := h.db.Exec(`UPDATE users SET password = $1 WHERE id = $2`, hashed, uid); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update password")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

// User management handlers

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "admin") {
		return
	}
	var users []domain.User
	if err := h.db.Select(&users, `SELECT id, username, email, role, created_at FROM users ORDER BY id`); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list users")
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (h *Handler) updateUserRole(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "admin") {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var payload struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Role != "admin" && payload.Role != "pharmacist" {
		respondError(w, http.StatusBadRequest, "role must be admin or pharmacist")
		return
	}
	res, err := h.db.Exec(`UPDATE users SET role = $1 WHERE id = $2`, payload.Role, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update role")
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "role updated"})
}

// Medicine search

func (h *Handler) searchMedicines(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.loadCatalog()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load medicine catalog")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	respondJSON(w, http.StatusOK, catalog.Search(query, limit))
}

// loadCatalog reads the full medicine list in catalog (id) order.
func (h *Handler) loadCatalog() (*recon.Catalog, error) {
	var rows []recon.Entry
	if err := h.db.Select(&rows, `SELECT id, name FROM medicines ORDER BY id`); err != nil {
		return nil, err
	}
	return recon.NewCatalog(rows), nil
}

// Batch handlers

type batchItemRequest struct {
	MedicineID int64           `json:"medicine_id"`
	Quantity   int64           `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	ExpiryDate string          `json:"expiry_date,omitempty"`
}

type batchRequest struct {
	BatchNumber   string             `json:"batch_number"`
	BillID        string             `json:"bill_id"`
	DeclaredPrice decimal.Decimal    `json:"declared_price"`
	Miscellaneous *decimal.Decimal   `json:"miscellaneous,omitempty"`
	Items         []batchItemRequest `json:"items"`
	Attachments   []string           `json:"attachments,omitempty"`
}

// buildDraft validates the request against the catalog and replays it through
// the reconciliation engine. Legacy clients may still send the adjustment as
// an item with the reserved id; it is routed to the miscellaneous slot, with
// the dedicated field winning when both are present.
func (h *Handler) buildDraft(catalog *recon.Catalog, req batchRequest) (*recon.Draft, error) {
	if strings.TrimSpace(req.BatchNumber) == "" {
		return nil, &recon.ValidationError{Field: "batch_number", Reason: "is required"}
	}
	draft := recon.NewDraftAt(req.BatchNumber, req.BillID, req.DeclaredPrice, h.now)
	draft.Attachments = append([]string(nil), req.Attachments...)

	for _, item := range req.Items {
		if catalog.IsMiscellaneous(item.MedicineID) {
			draft.SetMiscellaneous(recon.MiscellaneousLine{Amount: item.UnitPrice})
			continue
		}
		entry, ok := catalog.FindByID(item.MedicineID)
		if !ok {
			return nil, &recon.ValidationError{Field: "medicine_id", Reason: fmt.Sprintf("unknown medicine %d", item.MedicineID)}
		}
		var expiry time.Time
		if item.ExpiryDate != "" {
			parsed, err := time.Parse(dateLayout, item.ExpiryDate)
			if err != nil {
				return nil, &recon.ValidationError{Field: "expiry_date", Reason: "must be in YYYY-MM-DD format"}
			}
			expiry = parsed
		}
		if _, err := draft.AddMedicine(recon.MedicineLine{
			MedicineID:   entry.ID,
			MedicineName: entry.Name,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			ExpiryDate:   expiry,
		}); err != nil {
			return nil, err
		}
	}

	if req.Miscellaneous != nil {
		draft.SetMiscellaneous(recon.MiscellaneousLine{Amount: *req.Miscellaneous})
	}
	return draft, nil
}

// respondReconError maps engine errors onto the HTTP taxonomy.
func respondReconError(w http.ResponseWriter, err error) {
	var vErr *recon.ValidationError
	var nsErr *recon.NotSubmittableError
	switch {
	case errors.Is(err, recon.ErrDuplicateMedicine):
		respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &vErr):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &nsErr):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

type batchPreviewResponse struct {
	Reconciliation         recon.Reconciliation `json:"reconciliation"`
	SuggestedMiscellaneous decimal.Decimal      `json:"suggested_miscellaneous"`
}

func (h *Handler) previewBatch(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "admin", "pharmacist") {
		return
	}
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	catalog, err := h.loadCatalog()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load medicine catalog")
		return
	}
	draft, err := h.buildDraft(catalog, req)
	if err != nil {
		respondReconError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, batchPreviewResponse{
		Reconciliation:         recon.Evaluate(draft),
		SuggestedMiscellaneous: draft.SuggestMiscellaneous(),
	})
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "admin", "pharmacist") {
		return
	}
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	catalog, err := h.loadCatalog()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load medicine catalog")
		return
	}
	draft, err := h.buildDraft(catalog, req)
	if err != nil {
		respondReconError(w, err)
		return
	}
	payload, err := recon.NewAssemblerAt(h.now).Assemble(draft)
	if err != nil {
		respondReconError(w, err)
		return
	}

	userID := r.Context().Value(ctxUserID).(int64)
	batchID, err := h.persistBatch(payload, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to save batch")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"batch_id":       batchID,
		"reconciliation": recon.Evaluate(draft),
	})
}

// persistBatch writes the assembled payload and applies its stock-in effect.
func (h *Handler) persistBatch(payload recon.SubmissionPayload, userID int64) (int64, error) {
	tx, err := h.db.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var batchID int64
	err = tx.QueryRowx(`INSERT INTO batches (batch_number, bill_id, declared_price, miscellaneous, created_by) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		payload.BatchNumber, payload.BillID, payload.DeclaredPrice.InexactFloat64(), payload.Miscellaneous.InexactFloat64(), userID).Scan(&batchID)
	if err != nil {
		return 0, err
	}

	if err := h.insertBatchItems(tx, batchID, payload); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return batchID, nil
}

func (h *Handler) insertBatchItems(tx *sqlx.Tx, batchID int64, payload recon.SubmissionPayload) error {
	for _, item := range payload.Items {
		_, err := tx.Exec(`INSERT INTO batch_items (batch_id, medicine_id, medicine_name, quantity, unit_price, expiry_date, purchase_date, reorder_level) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			batchID, item.MedicineID, item.MedicineName, item.Quantity, item.UnitPrice.InexactFloat64(), item.ExpiryDate, item.PurchaseDate, item.ReorderLevel)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`INSERT INTO inventory (medicine_id, quantity, cost_price, reorder_level, expiry_date) VALUES ($1, $2, $3, $4, $5)
            ON CONFLICT(medicine_id) DO UPDATE SET quantity = quantity + excluded.quantity, cost_price = excluded.cost_price, expiry_date = excluded.expiry_date, updated_at = CURRENT_TIMESTAMP`,
			item.MedicineID, item.Quantity, item.UnitPrice.InexactFloat64(), item.ReorderLevel, item.ExpiryDate)
		if err != nil {
			return err
		}
	}
	for _, url := range payload.Attachments {
		if _, err := tx.Exec(`INSERT INTO batch_attachments (batch_id, url) VALUES ($1, $2)`, batchID, url); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) updateBatch(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "admin", "pharmacist") {
		return
	}
	batchID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid batch id")
		return
	}
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var exists int
	if err := h.db.Get(&exists, `SELECT COUNT(*) FROM batches WHERE id = $1`, batchID); err != nil || exists == 0 {
		respondError(w, http.StatusNotFound, "batch not found")
		return
	}

	catalog, err := h.loadCatalog()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load medicine catalog")
		return
	}
	draft, err := h.buildDraft(catalog, req)
	if err != nil {
		respondReconError(w, err)
		return
	}
	payload, err := recon.NewAssemblerAt(h.now).Assemble(draft)
	if err != nil {
		respondReconError(w, err)
		return
	}

	tx, err := h.db.Beginx()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update batch")
		return
	}
	defer tx.Rollback()

	// Reverse the previous stock-in effect before applying the new items.
	var oldItems []domain.BatchItem
	if err := tx.Select(&oldItems, `SELECT id, batch_id, medicine_id, medicine_name, quantity, unit_price, expiry_date, purchase_date, reorder_level FROM batch_items WHERE batch_id = $1`, batchID); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load existing items")
		return
	}
	for _, old := range oldItems {
		if _, err := tx.Exec(`UPDATE inventory SET quantity = quantity - $1, updated_at = CURRENT_TIMESTAMP WHERE medicine_id = $2`, old.Quantity, old.MedicineID); err != nil {
			respondError(w, http.StatusInternalServerError, "unable to adjust inventory")
			return
		}
	}
	if _, err := tx.Exec(`DELETE FROM batch_items WHERE batch_id = $1`, batchID); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to replace batch items")
		return
	}
	if _, err := tx.Exec(`DELETE FROM batch_attachments WHERE batch_id = $1`, batchID); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to replace attachments")
		return
	}

	_, err = tx.Exec(`UPDATE batches SET batch_number = $1, bill_id = $2, declared_price = $3, miscellaneous = $4, updated_at = CURRENT_TIMESTAMP WHERE id = $5`,
		payload.BatchNumber, payload.BillID, payload.DeclaredPrice.InexactFloat64(), payload.Miscellaneous.InexactFloat64(), batchID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update batch")
		return
	}
	if err := h.insertBatchItems(tx, batchID, payload); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to save batch items")
		return
	}
	if err := tx.Commit(); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to finalize batch update")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"batch_id":       batchID,
		"reconciliation": recon.Evaluate(draft),
	})
}

type batchDetail struct {
	domain.Batch
	Items       []domain.BatchItem `json:"items"`
	Attachments []string           `json:"attachments"`
}

func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	var batches []domain.Batch
	if err := h.db.Select(&batches, `SELECT id, batch_number, bill_id, declared_price, miscellaneous, created_by, created_at, updated_at FROM batches ORDER BY created_at DESC, id DESC`); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list batches")
		return
	}
	if len(batches) == 0 {
		respondJSON(w, http.StatusOK, []batchDetail{})
		return
	}

	ids := make([]int64, len(batches))
	for i, b := range batches {
		ids[i] = b.ID
	}
	itemsQuery, itemsArgs, err := sqlx.In(`SELECT id, batch_id, medicine_id, medicine_name, quantity, unit_price, expiry_date, purchase_date, reorder_level FROM batch_items WHERE batch_id IN (?)`, ids)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to prepare batch items query")
		return
	}
	itemsQuery = h.db.Rebind(itemsQuery)

	var rows []domain.BatchItem
	if err := h.db.Select(&rows, itemsQuery, itemsArgs...); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load batch items")
		return
	}
	itemsByBatch := make(map[int64][]domain.BatchItem)
	for _, row := range rows {
		itemsByBatch[row.BatchID] = append(itemsByBatch[row.BatchID], row)
	}

	report := make([]batchDetail, len(batches))
	for i, b := range batches {
		report[i] = batchDetail{Batch: b, Items: itemsByBatch[b.ID], Attachments: []string{}}
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	batchID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid batch id")
		return
	}

	var batch domain.Batch
	err = h.db.Get(&batch, `SELECT id, batch_number, bill_id, declared_price, miscellaneous, created_by, created_at, updated_at FROM batches WHERE id = $1`, batchID)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "batch not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load batch")
		return
	}

	var items []domain.BatchItem
	if err := h.db.Select(&items, `SELECT id, batch_id, medicine_id, medicine_name, quantity, unit_price, expiry_date, purchase_date, reorder_level FROM batch_items WHERE batch_id = $1 ORDER BY id`, batchID); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load batch items")
		return
	}
	attachments := []string{}
	if err := h.db.Select(&attachments, `SELECT url FROM batch_attachments WHERE batch_id = $1 ORDER BY id`, batchID); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load attachments")
		return
	}

	respondJSON(w, http.StatusOK, batchDetail{Batch: batch, Items: items, Attachments: attachments})
}

// Inventory handlers

type inventoryRow struct {
	InventoryID  int64   `db:"inventory_id" json:"inventory_id"`
	MedicineID   int64   `db:"medicine_id" json:"medicine_id"`
	Name         string  `db:"name" json:"name"`
	GenericName  string  `db:"generic_name" json:"generic_name"`
	Manufacturer string  `db:"manufacturer" json:"manufacturer"`
	Quantity     int64   `db:"quantity" json:"quantity"`
	CostPrice    float64 `db:"cost_price" json:"cost_price"`
	ReorderLevel int64   `db:"reorder_level" json:"reorder_level"`
	ExpiryDate   *string `db:"expiry_date" json:"expiry_date,omitempty"`
	TotalCost    float64 `db:"total_cost" json:"total_cost"`
}

func (h *Handler) listInventory(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	args := []any{}
	sqlQuery := `SELECT i.id AS inventory_id, i.medicine_id, i.quantity, i.cost_price, i.reorder_level, i.expiry_date, m.name, m.generic_name, m.manufacturer, (i.cost_price * i.quantity) AS total_cost
                FROM inventory i
                JOIN medicines m ON m.id = i.medicine_id
                WHERE i.quantity > 0`
	if query != "" {
		like := "%" + strings.ToLower(query) + "%"
		args = append(args, like)
		sqlQuery += " AND (lower(m.name) LIKE $1 OR lower(m.generic_name) LIKE $1)"
	}
	if r.URL.Query().Get("low_stock") == "true" {
		sqlQuery += " AND i.quantity <= i.reorder_level"
	}
	sqlQuery += " ORDER BY m.id LIMIT 25"

	var results []inventoryRow
	if err := h.db.Select(&results, sqlQuery, args...); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to search inventory")
		return
	}
	respondJSON(w, http.StatusOK, results)
}

func (h *Handler) updateStock(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "admin", "pharmacist") {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid inventory id")
		return
	}
	var payload struct {
		Quantity  int64            `json:"quantity"`
		CostPrice *decimal.Decimal `json:"cost_price,omitempty"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Quantity < 0 {
		respondError(w, http.StatusBadRequest, "quantity must not be negative")
		return
	}
	if payload.CostPrice != nil && !payload.CostPrice.IsPositive() {
		respondError(w, http.StatusBadRequest, "cost_price must be greater than zero")
		return
	}

	var inv struct {
		MedicineID int64   `db:"medicine_id"`
		CostPrice  float64 `db:"cost_price"`
	}
	err = h.db.Get(&inv, `SELECT medicine_id, cost_price FROM inventory WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "inventory item not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load inventory item")
		return
	}

	newPrice := decimal.NewFromFloat(inv.CostPrice)
	if payload.CostPrice != nil {
		newPrice = *payload.CostPrice
	}

	// Stock that came in through a batch is restated against that batch: the
	// edited quantity/price must still reconcile with its declared price.
	var owning struct {
		ItemID  int64 `db:"item_id"`
		BatchID int64 `db:"batch_id"`
	}
	err = h.db.Get(&owning, `SELECT id AS item_id, batch_id FROM batch_items WHERE medicine_id = $1 ORDER BY batch_id DESC, id DESC LIMIT 1`, inv.MedicineID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusInternalServerError, "unable to load batch items")
		return
	}
	if err == nil {
		h.restateBatchStock(w, id, owning.BatchID, owning.ItemID, payload.Quantity, newPrice)
		return
	}

	// No owning batch: a plain stock correction.
	res, err := h.db.Exec(`UPDATE inventory SET quantity = $1, cost_price = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3`,
		payload.Quantity, newPrice.InexactFloat64(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update stock")
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		respondError(w, http.StatusNotFound, "inventory item not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "stock updated"})
}

// restateBatchStock rebuilds the owning batch's draft with the edited line
// and runs it through the evaluator before persisting anything. A restated
// total that exceeds the declared bill amount keeps both the batch item and
// the inventory row untouched.
func (h *Handler) restateBatchStock(w http.ResponseWriter, inventoryID, batchID, itemID, quantity int64, unitPrice decimal.Decimal) {
	var batch domain.Batch
	if err := h.db.Get(&batch, `SELECT id, batch_number, bill_id, declared_price, miscellaneous, created_by, created_at, updated_at FROM batches WHERE id = $1`, batchID); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load batch")
		return
	}
	var items []domain.BatchItem
	if err := h.db.Select(&items, `SELECT id, batch_id, medicine_id, medicine_name, quantity, unit_price, expiry_date, purchase_date, reorder_level FROM batch_items WHERE batch_id = $1 ORDER BY id`, batchID); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load batch items")
		return
	}

	draft := recon.NewDraftAt(batch.BatchNumber, batch.BillID, decimal.NewFromFloat(batch.DeclaredPrice), h.now)
	draft.SetMiscellaneous(recon.MiscellaneousLine{Amount: decimal.NewFromFloat(batch.Miscellaneous)})
	for _, item := range items {
		qty := item.Quantity
		price := decimal.NewFromFloat(item.UnitPrice)
		if item.ID == itemID {
			qty = quantity
			price = unitPrice
		}
		expiry, _ := time.Parse(dateLayout, item.ExpiryDate)
		if _, err := draft.AddMedicine(recon.MedicineLine{
			MedicineID:   item.MedicineID,
			MedicineName: item.MedicineName,
			Quantity:     qty,
			UnitPrice:    price,
			ExpiryDate:   expiry,
		}); err != nil {
			respondReconError(w, err)
			return
		}
	}

	result := recon.Evaluate(draft)
	if !result.CanSubmit {
		respondReconError(w, &recon.NotSubmittableError{Reason: recon.BlockReasonFor(draft)})
		return
	}

	tx, err := h.db.Beginx()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update stock")
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE batch_items SET quantity = $1, unit_price = $2 WHERE id = $3`, quantity, unitPrice.InexactFloat64(), itemID); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update batch item")
		return
	}
	if _, err := tx.Exec(`UPDATE inventory SET quantity = $1, cost_price = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3`, quantity, unitPrice.InexactFloat64(), inventoryID); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update stock")
		return
	}
	if err := tx.Commit(); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to finalize stock update")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "stock updated",
		"reconciliation": result,
	})
}

func (h *Handler) expiryAlerts(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 {
		days = 30
	}
	cutoff := h.now().AddDate(0, 0, days).Format(dateLayout)
	var items []domain.InventoryItem
	if err := h.db.Select(&items, `SELECT id, medicine_id, quantity, cost_price, reorder_level, expiry_date, created_at, updated_at FROM inventory
                WHERE expiry_date IS NOT NULL AND expiry_date <= $1
                ORDER BY expiry_date ASC`, cutoff); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch alerts")
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// Attachment upload

func (h *Handler) uploadAttachment(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "admin", "pharmacist") {
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to prepare upload directory")
		return
	}
	name := uuid.NewString() + filepath.Ext(header.Filename)
	dest, err := os.Create(filepath.Join(h.uploadDir, name))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to store file")
		return
	}
	defer dest.Close()
	if _, err := io.Copy(dest, file); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to store file")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"url": "/uploads/" + name})
}

// Helpers

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
