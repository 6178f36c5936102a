package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"urutiq-ledger/internal/app"
)

type manualEntryBody struct {
	Date      string           `json:"date" validate:"required,datetime=2006-01-02"`
	Memo      string           `json:"memo" validate:"max=500"`
	Reference string           `json:"reference" validate:"required,max=64"`
	Draft     bool             `json:"draft"`
	Lines     []manualLineBody `json:"lines" validate:"required,dive"`
}

type manualLineBody struct {
	AccountID int64           `json:"account_id" validate:"required,gt=0"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      string          `json:"memo" validate:"max=500"`
}

// apiPostManualEntry handles POST /api/journal-entries.
func (h *Handler) apiPostManualEntry(w http.ResponseWriter, r *http.Request) {
	var body manualEntryBody
	if !h.decodeJSON(w, r, &body) {
		return
	}
	req := app.ManualEntryRequest{
		Scope:     scopeFromContext(r.Context()),
		Date:      body.Date,
		Memo:      body.Memo,
		Reference: body.Reference,
		Draft:     body.Draft,
		ActorID:   actorID(r),
	}
	for _, l := range body.Lines {
		req.Lines = append(req.Lines, app.ManualLineInput{
			AccountID: l.AccountID,
			Debit:     l.Debit,
			Credit:    l.Credit,
			Memo:      l.Memo,
		})
	}

	result, err := h.svc.PostManualEntry(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// apiGetEntryByReference handles GET /api/journal-entries/by-reference/{ref}.
func (h *Handler) apiGetEntryByReference(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetEntryByReference(r.Context(), scopeFromContext(r.Context()), chi.URLParam(r, "ref"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// apiPostDraft handles POST /api/journal-entries/{id}/post.
func (h *Handler) apiPostDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.PostDraft(r.Context(), scopeFromContext(r.Context()), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// apiDiscardDraft handles DELETE /api/journal-entries/{id}.
func (h *Handler) apiDiscardDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DiscardDraft(r.Context(), scopeFromContext(r.Context()), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiAccountBalance handles GET /api/accounts/{id}/balance?as_of=YYYY-MM-DD.
func (h *Handler) apiAccountBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetAccountBalance(r.Context(), scopeFromContext(r.Context()), id, r.URL.Query().Get("as_of"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// apiLockPeriod handles POST /api/periods/{year}/{month}/lock.
func (h *Handler) apiLockPeriod(w http.ResponseWriter, r *http.Request) {
	req, ok := periodRequest(w, r)
	if !ok {
		return
	}
	if err := h.svc.LockPeriod(r.Context(), req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"year": req.Year, "month": req.Month, "locked": true})
}

// apiUnlockPeriod handles DELETE /api/periods/{year}/{month}/lock.
func (h *Handler) apiUnlockPeriod(w http.ResponseWriter, r *http.Request) {
	req, ok := periodRequest(w, r)
	if !ok {
		return
	}
	if err := h.svc.UnlockPeriod(r.Context(), req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"year": req.Year, "month": req.Month, "locked": false})
}

func periodRequest(w http.ResponseWriter, r *http.Request) (app.PeriodRequest, bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, r, "year must be an integer", "BAD_REQUEST", http.StatusBadRequest)
		return app.PeriodRequest{}, false
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, r, "month must be an integer", "BAD_REQUEST", http.StatusBadRequest)
		return app.PeriodRequest{}, false
	}
	return app.PeriodRequest{
		Scope:   scopeFromContext(r.Context()),
		Year:    year,
		Month:   month,
		ActorID: actorID(r),
	}, true
}
