package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"urutiq-ledger/internal/app"
)

// Options configure the HTTP adapter.
type Options struct {
	AllowedOrigins []string
	MaxBodyBytes   int64 // 0 means 1 MB
	Log            *zap.Logger
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc      app.ApplicationService
	router   chi.Router
	validate *validator.Validate
	log      *zap.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	h := &Handler{
		svc:      svc,
		validate: newValidator(),
		log:      log,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(opts.AllowedOrigins))
	r.Use(RequestBodyLimit(maxBody))

	r.Get("/api/health", h.health)

	// Companies are created per tenant, before a company scope exists.
	r.Post("/api/companies", h.apiCreateCompany)

	r.Group(func(r chi.Router) {
		r.Use(RequireScope)

		// Documents
		r.Post("/api/documents", h.apiPostDocument)
		r.Post("/api/documents/{ref}/void", h.apiVoidDocument)

		// Journal entries
		r.Post("/api/journal-entries", h.apiPostManualEntry)
		r.Get("/api/journal-entries/by-reference/{ref}", h.apiGetEntryByReference)
		r.Post("/api/journal-entries/{id}/post", h.apiPostDraft)
		r.Delete("/api/journal-entries/{id}", h.apiDiscardDraft)

		// Accounts
		r.Get("/api/accounts", h.apiListAccounts)
		r.Post("/api/accounts", h.apiCreateAccount)
		r.Put("/api/accounts/{id}/purpose", h.apiAssignPurpose)
		r.Get("/api/accounts/{id}/balance", h.apiAccountBalance)

		// Periods
		r.Post("/api/periods/{year}/{month}/lock", h.apiLockPeriod)
		r.Delete("/api/periods/{year}/{month}/lock", h.apiUnlockPeriod)

		// Inventory
		r.Post("/api/products", h.apiCreateProduct)
		r.Get("/api/products/{id}/stock", h.apiGetStock)
		r.Post("/api/products/{id}/adjustments", h.apiAdjustStock)

		r.Get("/api/audit", h.apiAudit)
	})

	h.router = r
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// newValidator reports field names by their JSON tags.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON decodes the request body into v and validates it. It returns
// false after writing the error response on failure: 413 when the body
// exceeds the limit, 400 for malformed JSON, 422 for failed validation.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	if n, ok := v.(normalizer); ok {
		n.normalize()
	}
	if err := h.validate.Struct(v); err != nil {
		writeValidationError(w, r, err)
		return false
	}
	return true
}

// normalizer is implemented by request bodies whose enum fields are
// case-insensitive on the wire.
type normalizer interface {
	normalize()
}

// pathID parses a positive integer URL parameter.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, name+" must be a positive integer", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
