package web

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"urutiq-ledger/internal/app"
)

type createCompanyBody struct {
	Code string `json:"code" validate:"required,max=32"`
	Name string `json:"name" validate:"required,max=200"`
}

// apiCreateCompany handles POST /api/companies. Only X-Tenant-ID is required.
func (h *Handler) apiCreateCompany(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(strings.TrimSpace(r.Header.Get(headerTenantID)))
	if err != nil {
		writeError(w, r, headerTenantID+" must be a UUID", "INVALID_SCOPE", http.StatusUnprocessableEntity)
		return
	}
	var body createCompanyBody
	if !h.decodeJSON(w, r, &body) {
		return
	}
	company, err := h.svc.CreateCompany(r.Context(), tenantID, strings.TrimSpace(body.Code), strings.TrimSpace(body.Name))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, company)
}

type createAccountBody struct {
	Code       string `json:"code" validate:"required,max=32"`
	Name       string `json:"name" validate:"required,max=200"`
	Type       string `json:"type" validate:"required,oneof=asset liability equity revenue expense"`
	NormalSide string `json:"normal_side" validate:"required,oneof=debit credit"`
	Purpose    string `json:"purpose" validate:"omitempty,oneof=AR AP CASH REVENUE COGS INVENTORY EXPENSE SALES_TAX INPUT_TAX"`
}

func (b *createAccountBody) normalize() {
	b.Type = strings.ToLower(strings.TrimSpace(b.Type))
	b.NormalSide = strings.ToLower(strings.TrimSpace(b.NormalSide))
	b.Purpose = strings.ToUpper(strings.TrimSpace(b.Purpose))
}

// apiCreateAccount handles POST /api/accounts.
func (h *Handler) apiCreateAccount(w http.ResponseWriter, r *http.Request) {
	var body createAccountBody
	if !h.decodeJSON(w, r, &body) {
		return
	}
	account, err := h.svc.CreateAccount(r.Context(), createAccountRequest(r, body))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// apiListAccounts handles GET /api/accounts.
func (h *Handler) apiListAccounts(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListAccounts(r.Context(), scopeFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type assignPurposeBody struct {
	Purpose string `json:"purpose" validate:"required,oneof=AR AP CASH REVENUE COGS INVENTORY EXPENSE SALES_TAX INPUT_TAX"`
}

func (b *assignPurposeBody) normalize() {
	b.Purpose = strings.ToUpper(strings.TrimSpace(b.Purpose))
}

// apiAssignPurpose handles PUT /api/accounts/{id}/purpose.
func (h *Handler) apiAssignPurpose(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body assignPurposeBody
	if !h.decodeJSON(w, r, &body) {
		return
	}
	if err := h.svc.AssignPurpose(r.Context(), scopeFromContext(r.Context()), id, body.Purpose); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account_id": id, "purpose": body.Purpose})
}

func createAccountRequest(r *http.Request, body createAccountBody) app.CreateAccountRequest {
	return app.CreateAccountRequest{
		Scope:      scopeFromContext(r.Context()),
		Code:       strings.TrimSpace(body.Code),
		Name:       strings.TrimSpace(body.Name),
		Type:       body.Type,
		NormalSide: body.NormalSide,
		Purpose:    body.Purpose,
	}
}
