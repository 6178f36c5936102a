package web

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"urutiq-ledger/internal/app"
)

type createProductBody struct {
	SKU              string          `json:"sku" validate:"required,max=64"`
	Name             string          `json:"name" validate:"required,max=200"`
	Kind             string          `json:"kind" validate:"required,oneof=GOOD SERVICE"`
	CostPrice        decimal.Decimal `json:"cost_price"`
	RevenueAccountID *int64          `json:"revenue_account_id" validate:"omitempty,gt=0"`
}

func (b *createProductBody) normalize() {
	b.Kind = strings.ToUpper(strings.TrimSpace(b.Kind))
	b.SKU = strings.TrimSpace(b.SKU)
}

// apiCreateProduct handles POST /api/products.
func (h *Handler) apiCreateProduct(w http.ResponseWriter, r *http.Request) {
	var body createProductBody
	if !h.decodeJSON(w, r, &body) {
		return
	}
	product, err := h.svc.CreateProduct(r.Context(), app.CreateProductRequest{
		Scope:            scopeFromContext(r.Context()),
		SKU:              body.SKU,
		Name:             body.Name,
		Kind:             body.Kind,
		CostPrice:        body.CostPrice,
		RevenueAccountID: body.RevenueAccountID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

// apiGetStock handles GET /api/products/{id}/stock.
func (h *Handler) apiGetStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetStock(r.Context(), scopeFromContext(r.Context()), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type adjustStockBody struct {
	Quantity  decimal.Decimal `json:"quantity"`
	Reference string          `json:"reference" validate:"required,max=64"`
	Reason    string          `json:"reason" validate:"required,max=500"`
	Date      string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// apiAdjustStock handles POST /api/products/{id}/adjustments.
func (h *Handler) apiAdjustStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body adjustStockBody
	if !h.decodeJSON(w, r, &body) {
		return
	}
	result, err := h.svc.AdjustStock(r.Context(), app.AdjustStockRequest{
		Scope:     scopeFromContext(r.Context()),
		ProductID: id,
		Quantity:  body.Quantity,
		Reference: body.Reference,
		Reason:    body.Reason,
		Date:      body.Date,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// apiAudit handles GET /api/audit.
func (h *Handler) apiAudit(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.AuditLedger(r.Context(), scopeFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": report.OK(), "report": report})
}
