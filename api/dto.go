/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model (decimal amounts, typed ids) from the external
  API contract; amounts become float64 only at this boundary.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the service facade, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - service/gathering_service.go: the operations behind them
*/
package api

import (
	"time"

	"github.com/gatherup/settlement-engine/gathering"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateGatheringRequest creates a gathering with a placeholder roster.
type CreateGatheringRequest struct {
	ID      string `json:"id"`
	Members int    `json:"members"`
}

// AddExpenseRequest records an expense for a (possibly placeholder) member.
type AddExpenseRequest struct {
	Member string  `json:"member"`
	Amount float64 `json:"amount"`
}

// RecordPaymentRequest records a payment; negative amounts are reimbursements.
type RecordPaymentRequest struct {
	Member string  `json:"member"`
	Amount float64 `json:"amount"`
}

// AddMemberRequest adds a named member to the roster.
type AddMemberRequest struct {
	Name string `json:"name"`
}

// RenameMemberRequest gives an existing member a new name.
type RenameMemberRequest struct {
	NewName string `json:"new_name"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// GatheringDTO represents a gathering in API responses.
type GatheringDTO struct {
	ID           string      `json:"id"`
	TotalMembers int         `json:"total_members"`
	Status       string      `json:"status"`
	CreatedAt    string      `json:"created_at,omitempty"`
	Members      []MemberDTO `json:"members,omitempty"`
}

// GatheringSummaryDTO is the (id, status) pair returned by list.
type GatheringSummaryDTO struct {
	ID           string `json:"id"`
	TotalMembers int    `json:"total_members"`
	Status       string `json:"status"`
}

// MemberDTO represents a member with its derived settlement figures.
type MemberDTO struct {
	Name        string  `json:"name"`
	Placeholder bool    `json:"placeholder"`
	Expenses    float64 `json:"expenses"`
	Paid        float64 `json:"paid"`
	Balance     float64 `json:"balance"`
	Status      string  `json:"status"`
}

// ExpenseDTO confirms a recorded expense.
type ExpenseDTO struct {
	Member        string  `json:"member"`
	Amount        float64 `json:"amount"`
	TotalExpenses float64 `json:"total_expenses"`
}

// PaymentDTO confirms a recorded payment.
type PaymentDTO struct {
	Member string  `json:"member"`
	Amount float64 `json:"amount"`
	Type   string  `json:"type"` // "payment" or "reimbursement"
}

// ReimbursementDTO is one settlement-view line: negative amounts are owed
// to the member, positive amounts are still owed by the member.
type ReimbursementDTO struct {
	Amount float64 `json:"amount"`
	Type   string  `json:"type"` // "gets_reimbursed" or "needs_to_pay"
}

// CalculationDTO is the calculate response.
type CalculationDTO struct {
	TotalExpenses    float64                     `json:"total_expenses"`
	ExpensePerMember float64                     `json:"expense_per_member"`
	Reimbursements   map[string]ReimbursementDTO `json:"reimbursements"`
}

// SummaryDTO is the payment-summary response.
type SummaryDTO struct {
	TotalExpenses    float64                     `json:"total_expenses"`
	ExpensePerMember float64                     `json:"expense_per_member"`
	Members          map[string]MemberSummaryDTO `json:"members"`
}

// MemberSummaryDTO is one member's line in the payment summary.
type MemberSummaryDTO struct {
	Expenses float64 `json:"expenses"`
	Paid     float64 `json:"paid"`
	Balance  float64 `json:"balance"`
	Status   string  `json:"status"`
}

// ErrorResponse carries a human-readable failure message.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toGatheringDTO(g *gathering.Gathering) GatheringDTO {
	dto := GatheringDTO{
		ID:           g.ID,
		TotalMembers: g.TotalMembers,
		Status:       string(g.Status),
		CreatedAt:    g.CreatedAt.Format(time.RFC3339),
	}
	for i := range g.Members {
		m := &g.Members[i]
		dto.Members = append(dto.Members, MemberDTO{
			Name:        m.Name,
			Placeholder: m.Placeholder,
			Expenses:    m.TotalExpenses().InexactFloat64(),
			Paid:        m.TotalPayments().InexactFloat64(),
			Balance:     gathering.MemberBalance(m, g).InexactFloat64(),
			Status:      string(gathering.MemberStatus(m, g)),
		})
	}
	return dto
}

func toSummaryDTO(s gathering.Summary) SummaryDTO {
	dto := SummaryDTO{
		TotalExpenses:    s.TotalExpenses.InexactFloat64(),
		ExpensePerMember: s.ExpensePerMember.InexactFloat64(),
		Members:          make(map[string]MemberSummaryDTO, len(s.Members)),
	}
	for name, m := range s.Members {
		dto.Members[name] = MemberSummaryDTO{
			Expenses: m.Expenses.InexactFloat64(),
			Paid:     m.Paid.InexactFloat64(),
			Balance:  m.Balance.InexactFloat64(),
			Status:   string(m.Status),
		}
	}
	return dto
}
