/*
Package gathering provides the core ledger and lifecycle engine for
shared-expense gatherings.

PURPOSE:
  A gathering is a single event with a roster of members, expenses paid by
  members on behalf of the group, and payments settling balances against an
  equal split of the total. This package holds the domain model, the pure
  balance/reimbursement computation, the placeholder-member resolution rule,
  and the open/closed lifecycle guards.

KEY CONCEPTS IN THIS FILE (types.go):
  - Gathering: the aggregate root, loaded whole (members + activity)
  - Member: a participant, real-named or auto-generated placeholder
  - Expense: money a member spent for the group (strictly positive)
  - Payment: money a member paid into or received from the pool (any sign)

DESIGN PRINCIPLES:
  1. Precision: amounts use decimal.Decimal, never raw floats
  2. Aggregates hold child slices, not back-references; derived figures
     (balance, status, totals) are computed on access, never stored
  3. Expenses and payments are immutable once created

SEE ALSO:
  - ledger.go: balance and reimbursement computation
  - resolver.go: placeholder-member naming and matching
  - lifecycle.go: open/closed state machine guards
  - store.go: persistence contract
*/
package gathering

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the lifecycle state of a gathering.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// MemberID identifies a member row. Opaque; names are the caller-facing
// identity and are unique only within a gathering.
type MemberID string

// ValidateID checks the gathering id format: a calendar-valid YYYY-MM-DD
// prefix followed by a free-form suffix, e.g. "2025-03-01-friendsbeer".
func ValidateID(id string) error {
	parts := strings.SplitN(id, "-", 4)
	if len(parts) < 3 {
		return &InvalidIDError{ID: id}
	}
	datePart := strings.Join(parts[:3], "-")
	if _, err := time.Parse("2006-01-02", datePart); err != nil {
		return &InvalidIDError{ID: id}
	}
	return nil
}

// =============================================================================
// PLACEHOLDER NAMING
// =============================================================================

// placeholderPrefix is the generated-name convention for members created
// before their real names are known. The full format is bit-exact:
// "member" + 4-digit zero-padded sequence number, starting at 0001.
const placeholderPrefix = "member"

// PlaceholderName returns the generated name for the n-th member (1-based).
func PlaceholderName(n int) string {
	return fmt.Sprintf("%s%04d", placeholderPrefix, n)
}

// =============================================================================
// AGGREGATE
// =============================================================================

// Gathering is the aggregate root. Loads are always full and consistent:
// every member carries its complete expense and payment history.
type Gathering struct {
	ID           string
	TotalMembers int
	Status       Status
	CreatedAt    time.Time

	// Members in creation order. Invariant: len(Members) == TotalMembers.
	Members []Member
}

// Member is a participant in exactly one gathering.
type Member struct {
	ID   MemberID
	Name string

	// Placeholder marks an auto-generated member awaiting a real name.
	// Tracked explicitly rather than inferred from the name string, so a
	// later member whose real name happens to look generated is never
	// mistaken for one.
	Placeholder bool

	// Expenses and Payments in creation order. Order does not affect
	// balance computation.
	Expenses []Expense
	Payments []Payment
}

// Expense records money a member spent on behalf of the group.
// Immutable once created.
type Expense struct {
	ID        string
	MemberID  MemberID
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// Payment records money flowing between a member and the settlement pool.
// Positive = member paid in, negative = member was reimbursed.
// Immutable once created.
type Payment struct {
	ID        string
	MemberID  MemberID
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// MemberByName returns the member with the exact given name, or nil.
func (g *Gathering) MemberByName(name string) *Member {
	for i := range g.Members {
		if g.Members[i].Name == name {
			return &g.Members[i]
		}
	}
	return nil
}

// TotalExpenses sums this member's expense amounts.
func (m *Member) TotalExpenses() decimal.Decimal {
	total := decimal.Zero
	for _, e := range m.Expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// TotalPayments sums this member's payment amounts (reimbursements are
// negative, so they reduce the total).
func (m *Member) TotalPayments() decimal.Decimal {
	total := decimal.Zero
	for _, p := range m.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// HasActivity reports whether any expense or payment has been recorded
// against this member. Members with activity cannot be removed.
func (m *Member) HasActivity() bool {
	return len(m.Expenses) > 0 || len(m.Payments) > 0
}
