/*
ledger.go - Balance and reimbursement computation

PURPOSE:
  Pure functions over a loaded gathering aggregate. Nothing here touches
  storage or holds state between calls, so derived figures can never drift
  from the underlying expense/payment data.

KEY INSIGHT:
  The same quantity is exposed under two deliberately different sign
  conventions, consumed by different callers:

    MemberBalance:  expenses + payments - share
                    positive = member is owed money (summary view)

    Reimbursements: share - expenses + payments
                    positive = member still owes money (settlement view)

  The payments term enters with the SAME sign in both views, so the two are
  exact negations only while no payments exist. Both formulas are preserved
  as-is; changing either would change observable output.

EXAMPLE:
  5 members, Roy paid 50, David 100, Felix 50. Total 200, share 40.
  Reimbursements: Roy -10, David -60, Felix -10 (each gets money back),
  every remaining placeholder +40 (still owes their share).

SEE ALSO:
  - types.go: the aggregate these functions consume
  - service/gathering_service.go: the read operations built on them
*/
package gathering

import "github.com/shopspring/decimal"

// =============================================================================
// MEMBER STATUS LABELS
// =============================================================================

// MemberStatusLabel classifies a member's balance.
type MemberStatusLabel string

const (
	StatusSettled   MemberStatusLabel = "settled"
	StatusIsOwed    MemberStatusLabel = "is_owed_money"
	StatusOwesMoney MemberStatusLabel = "owes_money"
)

// settledEpsilon absorbs floating-point noise carried in from callers that
// supply amounts as floats. Balances within this band count as settled.
var settledEpsilon = decimal.NewFromFloat(0.01)

// =============================================================================
// GATHERING-LEVEL TOTALS
// =============================================================================

// TotalExpenses sums all expense amounts across all members of g.
func TotalExpenses(g *Gathering) decimal.Decimal {
	total := decimal.Zero
	for i := range g.Members {
		total = total.Add(g.Members[i].TotalExpenses())
	}
	return total
}

// TotalPayments sums all payment amounts across all members of g.
func TotalPayments(g *Gathering) decimal.Decimal {
	total := decimal.Zero
	for i := range g.Members {
		total = total.Add(g.Members[i].TotalPayments())
	}
	return total
}

// ExpensePerMember is each member's equal share of the total expenses.
// Defined as zero for an empty roster to avoid division by zero.
func ExpensePerMember(g *Gathering) decimal.Decimal {
	if g.TotalMembers == 0 {
		return decimal.Zero
	}
	return TotalExpenses(g).Div(decimal.NewFromInt(int64(g.TotalMembers)))
}

// =============================================================================
// PER-MEMBER DERIVATIONS
// =============================================================================

// MemberBalance is the member's net contribution relative to their share.
// Positive = contributed more than their share, is owed money.
// Negative = owes money.
func MemberBalance(m *Member, g *Gathering) decimal.Decimal {
	return m.TotalExpenses().Add(m.TotalPayments()).Sub(ExpensePerMember(g))
}

// MemberStatus classifies the member's balance: settled within the epsilon
// band, otherwise owed or owing by sign.
func MemberStatus(m *Member, g *Gathering) MemberStatusLabel {
	balance := MemberBalance(m, g)
	switch {
	case balance.Abs().LessThan(settledEpsilon):
		return StatusSettled
	case balance.IsPositive():
		return StatusIsOwed
	default:
		return StatusOwesMoney
	}
}

// =============================================================================
// SETTLEMENT VIEW
// =============================================================================

// Reimbursements maps each member name to the amount that must still flow
// to reach equilibrium. Negative = member receives money, positive = member
// still owes money. Note the inverted sign relative to MemberBalance.
func Reimbursements(g *Gathering) map[string]decimal.Decimal {
	share := ExpensePerMember(g)
	out := make(map[string]decimal.Decimal, len(g.Members))
	for i := range g.Members {
		m := &g.Members[i]
		out[m.Name] = share.Sub(m.TotalExpenses()).Add(m.TotalPayments())
	}
	return out
}

// =============================================================================
// PAYMENT SUMMARY
// =============================================================================

// MemberSummary is one member's line in a payment summary.
type MemberSummary struct {
	Expenses decimal.Decimal
	Paid     decimal.Decimal
	Balance  decimal.Decimal
	Status   MemberStatusLabel
}

// Summary is the full settlement picture for a gathering.
type Summary struct {
	TotalExpenses    decimal.Decimal
	ExpensePerMember decimal.Decimal
	Members          map[string]MemberSummary
}

// Summarize derives the payment summary for g.
func Summarize(g *Gathering) Summary {
	s := Summary{
		TotalExpenses:    TotalExpenses(g),
		ExpensePerMember: ExpensePerMember(g),
		Members:          make(map[string]MemberSummary, len(g.Members)),
	}
	for i := range g.Members {
		m := &g.Members[i]
		s.Members[m.Name] = MemberSummary{
			Expenses: m.TotalExpenses(),
			Paid:     m.TotalPayments(),
			Balance:  MemberBalance(m, g),
			Status:   MemberStatus(m, g),
		}
	}
	return s
}
