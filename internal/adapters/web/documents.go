package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"urutiq-ledger/internal/app"
)

type postDocumentBody struct {
	Kind    string             `json:"kind" validate:"required,oneof=SALE PURCHASE_RECEIPT EXPENSE"`
	Number  string             `json:"number" validate:"required,max=64"`
	Date    string             `json:"date" validate:"required,datetime=2006-01-02"`
	Memo    string             `json:"memo" validate:"max=500"`
	Payment string             `json:"payment" validate:"omitempty,oneof=CREDIT CASH"`
	Tax     decimal.Decimal    `json:"tax"`
	Total   *decimal.Decimal   `json:"total"`
	Lines   []documentLineBody `json:"lines" validate:"required,min=1,dive"`
}

type documentLineBody struct {
	ProductID   *int64          `json:"product_id" validate:"omitempty,gt=0"`
	AccountID   *int64          `json:"account_id" validate:"omitempty,gt=0"`
	Description string          `json:"description" validate:"max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (b *postDocumentBody) normalize() {
	b.Kind = strings.ToUpper(strings.TrimSpace(b.Kind))
	b.Payment = strings.ToUpper(strings.TrimSpace(b.Payment))
	b.Number = strings.TrimSpace(b.Number)
	b.Date = strings.TrimSpace(b.Date)
}

// apiPostDocument handles POST /api/documents.
func (h *Handler) apiPostDocument(w http.ResponseWriter, r *http.Request) {
	var body postDocumentBody
	if !h.decodeJSON(w, r, &body) {
		return
	}

	req := app.PostDocumentRequest{
		Scope:   scopeFromContext(r.Context()),
		Kind:    body.Kind,
		Number:  body.Number,
		Date:    body.Date,
		Memo:    body.Memo,
		Payment: body.Payment,
		Tax:     body.Tax,
		Total:   body.Total,
		ActorID: actorID(r),
	}
	for _, l := range body.Lines {
		req.Lines = append(req.Lines, app.DocumentLineInput{
			ProductID:   l.ProductID,
			AccountID:   l.AccountID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		})
	}

	result, err := h.svc.PostDocument(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// apiVoidDocument handles POST /api/documents/{ref}/void. A repeated void
// answers 200 with already_processed set.
func (h *Handler) apiVoidDocument(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.VoidDocument(r.Context(), app.VoidDocumentRequest{
		Scope:     scopeFromContext(r.Context()),
		Reference: chi.URLParam(r, "ref"),
		ActorID:   actorID(r),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
