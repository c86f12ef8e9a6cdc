/*
store.go - Persistence contract for gathering aggregates

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite or in-memory storage.

ATOMICITY CONTRACT:
  Every mutating method is atomic with respect to a single gathering:
  fully applied or fully rolled back. No caller ever observes a partial
  aggregate (members without their activity, a rename without its expense).

REFERENTIAL INTEGRITY:
  Expenses and payments always belong to an existing member of an existing
  gathering. Deleting a gathering cascades to members, expenses, and
  payments as one unit. TotalMembers is adjusted in the same transaction
  as any roster change.

ERROR PROPAGATION:
  Implementations surface failures as the errors.go taxonomy, never as
  storage-technology errors.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - gathering/store: in-memory store for tests

SEE ALSO:
  - resolver.go: AppendExpense runs the resolver inside its transaction
  - lifecycle.go: guards applied inside mutation transactions
*/
package gathering

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store persists gathering aggregates.
type Store interface {
	// CreateGathering validates the id, rejects duplicates, and atomically
	// creates the gathering plus memberCount placeholder members named
	// member0001..memberNNNN.
	CreateGathering(ctx context.Context, id string, memberCount int) (*Gathering, error)

	// GetGathering loads the full aggregate or fails with ErrNotFound.
	GetGathering(ctx context.Context, id string) (*Gathering, error)

	// ListGatherings loads all aggregates in creation order.
	ListGatherings(ctx context.Context) ([]*Gathering, error)

	// DeleteGathering cascades deletion of the gathering with all its
	// members, expenses, and payments. Closed gatherings require force.
	DeleteGathering(ctx context.Context, id string, force bool) error

	// CloseGathering transitions OPEN -> CLOSED. Fails with ErrAlreadyClosed
	// if already closed.
	CloseGathering(ctx context.Context, id string) (*Gathering, error)

	// AddMember adds a named member to an open gathering and increments
	// TotalMembers. The name must be unique within the gathering.
	AddMember(ctx context.Context, gatheringID, name string) (*Gathering, *Member, error)

	// RemoveMember removes an activity-free member from an open gathering
	// and decrements TotalMembers. Fails with ErrMemberHasActivity if any
	// expense or payment exists. Placeholder numbering is never reused.
	RemoveMember(ctx context.Context, gatheringID, name string) (*Gathering, error)

	// RenameMember renames an existing member of an open gathering. The new
	// name must not be taken. Renaming clears the placeholder flag.
	RenameMember(ctx context.Context, gatheringID, oldName, newName string) (*Member, error)

	// AppendExpense records an expense against the member resolved from
	// memberName (exact match, else lowest-numbered placeholder renamed in
	// place). Resolution, rename, and insert commit as one transaction.
	// Returns the refreshed aggregate and the resolved member.
	AppendExpense(ctx context.Context, gatheringID, memberName string, amount decimal.Decimal) (*Gathering, *Member, error)

	// AppendPayment records a payment (any sign) against an exactly-named
	// existing member of an open gathering.
	AppendPayment(ctx context.Context, gatheringID, memberName string, amount decimal.Decimal) (*Gathering, *Member, error)

	// Close releases resources held by the store.
	Close() error
}
