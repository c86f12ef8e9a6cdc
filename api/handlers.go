/*
handlers.go - HTTP API handlers for the gathering settlement engine

PURPOSE:
  Exposes the ledger and lifecycle engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the service
  facade.

ENDPOINTS:
  Gatherings:
    GET    /api/gatherings                          List (id, status) pairs
    POST   /api/gatherings                          Create with placeholder roster
    GET    /api/gatherings/{id}                     Full settlement view
    DELETE /api/gatherings/{id}?force=true          Cascade delete
    POST   /api/gatherings/{id}/close               Close (no reopen)

  Activity:
    POST   /api/gatherings/{id}/expenses            Add expense (resolves placeholders)
    POST   /api/gatherings/{id}/payments            Record payment (any sign)
    GET    /api/gatherings/{id}/reimbursements      Settlement-view amounts
    GET    /api/gatherings/{id}/summary             Per-member balances and statuses

  Roster:
    POST   /api/gatherings/{id}/members             Add member
    PUT    /api/gatherings/{id}/members/{name}      Rename member
    DELETE /api/gatherings/{id}/members/{name}      Remove member

ERROR HANDLING:
  The error taxonomy maps onto HTTP status:
  - 400: InvalidId, InvalidAmount, malformed bodies
  - 404: NotFound, MemberNotFound
  - 409: AlreadyExists, DuplicateName, GatheringClosed, AlreadyClosed,
         MemberHasActivity
  - 500: everything else
  Failure bodies always carry the taxonomy's human-readable message.

SEE ALSO:
  - dto.go: request/response data structures
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/gatherup/settlement-engine/gathering"
	"github.com/gatherup/settlement-engine/service"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *service.GatheringService
}

// NewHandler creates a new handler backed by the given service facade.
func NewHandler(svc *service.GatheringService) *Handler {
	return &Handler{Service: svc}
}

// =============================================================================
// GATHERING HANDLERS
// =============================================================================

// ListGatherings returns (id, status) pairs for all gatherings.
func (h *Handler) ListGatherings(w http.ResponseWriter, r *http.Request) {
	gatherings, err := h.Service.ListGatherings(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list gatherings", err)
		return
	}

	dtos := make([]GatheringSummaryDTO, len(gatherings))
	for i, g := range gatherings {
		dtos[i] = GatheringSummaryDTO{
			ID:           g.ID,
			TotalMembers: g.TotalMembers,
			Status:       string(g.Status),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateGathering creates a gathering with its placeholder roster.
func (h *Handler) CreateGathering(w http.ResponseWriter, r *http.Request) {
	var req CreateGatheringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	g, err := h.Service.CreateGathering(r.Context(), req.ID, req.Members)
	if err != nil {
		writeDomainError(w, "Failed to create gathering", err)
		return
	}
	writeJSON(w, http.StatusCreated, toGatheringDTO(g))
}

// GetGathering returns the full settlement view of one gathering.
func (h *Handler) GetGathering(w http.ResponseWriter, r *http.Request) {
	g, err := h.Service.GetGathering(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get gathering", err)
		return
	}
	writeJSON(w, http.StatusOK, toGatheringDTO(g))
}

// DeleteGathering cascades deletion; ?force=true overrides the closed guard.
func (h *Handler) DeleteGathering(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	if err := h.Service.DeleteGathering(r.Context(), chi.URLParam(r, "id"), force); err != nil {
		writeDomainError(w, "Failed to delete gathering", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CloseGathering transitions the gathering to CLOSED.
func (h *Handler) CloseGathering(w http.ResponseWriter, r *http.Request) {
	g, err := h.Service.CloseGathering(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to close gathering", err)
		return
	}
	writeJSON(w, http.StatusOK, toGatheringDTO(g))
}

// =============================================================================
// ACTIVITY HANDLERS
// =============================================================================

// AddExpense records an expense, resolving placeholder members by the
// lowest-numbered-first rule.
func (h *Handler) AddExpense(w http.ResponseWriter, r *http.Request) {
	var req AddExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	g, member, err := h.Service.AddExpense(r.Context(),
		chi.URLParam(r, "id"), req.Member, decimal.NewFromFloat(req.Amount))
	if err != nil {
		writeDomainError(w, "Failed to add expense", err)
		return
	}

	writeJSON(w, http.StatusCreated, ExpenseDTO{
		Member:        member.Name,
		Amount:        req.Amount,
		TotalExpenses: gathering.TotalExpenses(g).InexactFloat64(),
	})
}

// RecordPayment records a payment; negative amounts are reimbursements.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	_, member, err := h.Service.RecordPayment(r.Context(),
		chi.URLParam(r, "id"), req.Member, decimal.NewFromFloat(req.Amount))
	if err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}

	kind := "payment"
	if req.Amount < 0 {
		kind = "reimbursement"
	}
	writeJSON(w, http.StatusCreated, PaymentDTO{
		Member: member.Name,
		Amount: req.Amount,
		Type:   kind,
	})
}

// CalculateReimbursements returns the settlement view: how much must still
// flow from (positive) or to (negative) each member. Totals and map come
// from the same aggregate snapshot.
func (h *Handler) CalculateReimbursements(w http.ResponseWriter, r *http.Request) {
	g, reimbursements, err := h.Service.CalculateReimbursements(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to calculate reimbursements", err)
		return
	}

	dto := CalculationDTO{
		TotalExpenses:    gathering.TotalExpenses(g).InexactFloat64(),
		ExpensePerMember: gathering.ExpensePerMember(g).InexactFloat64(),
		Reimbursements:   make(map[string]ReimbursementDTO, len(reimbursements)),
	}
	for name, amount := range reimbursements {
		kind := "needs_to_pay"
		if amount.IsNegative() {
			kind = "gets_reimbursed"
		}
		dto.Reimbursements[name] = ReimbursementDTO{
			Amount: amount.InexactFloat64(),
			Type:   kind,
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetSummary returns per-member expenses, payments, balances, and statuses.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.PaymentSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get payment summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// =============================================================================
// ROSTER HANDLERS
// =============================================================================

// AddMember adds a named member to an open gathering.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	g, _, err := h.Service.AddMember(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		writeDomainError(w, "Failed to add member", err)
		return
	}
	writeJSON(w, http.StatusCreated, toGatheringDTO(g))
}

// RenameMember gives an existing member a new, unique name.
func (h *Handler) RenameMember(w http.ResponseWriter, r *http.Request) {
	var req RenameMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	member, err := h.Service.RenameMember(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "name"), req.NewName)
	if err != nil {
		writeDomainError(w, "Failed to rename member", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        member.Name,
		"placeholder": member.Placeholder,
	})
}

// RemoveMember removes an activity-free member from an open gathering.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	g, err := h.Service.RemoveMember(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, "Failed to remove member", err)
		return
	}
	writeJSON(w, http.StatusOK, toGatheringDTO(g))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the error taxonomy onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case gathering.IsInvalid(err):
		writeError(w, http.StatusBadRequest, message, err)
	case gathering.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case gathering.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
