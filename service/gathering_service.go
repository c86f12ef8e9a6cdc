/*
Package service exposes the gathering operations to callers.

PURPOSE:
  The facade composing the entity store, the ledger engine, the membership
  resolver, and the lifecycle guards into the operation set a CLI, RPC
  layer, or embedding host binds to.

CONTRACTS:
  - create:          member count must be >= 0; id date prefix must parse
  - add-expense:     amount strictly positive; resolver may claim a placeholder
  - record-payment:  any sign; exact member name only
  - rename/add/remove member: exact names, open gathering only
  - close:           OPEN -> CLOSED once
  - delete:          closed gatherings require force
  - calculate/summary/show/list: read-only, allowed regardless of status

ERROR POLICY:
  Failures from the store surface verbatim; nothing is recovered locally.
  Every operation logs its parameters and outcome with slog.
*/
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/gatherup/settlement-engine/gathering"
)

// InvalidMemberCountError rejects negative roster sizes at creation.
type InvalidMemberCountError struct {
	Count int
}

func (e *InvalidMemberCountError) Error() string {
	return fmt.Sprintf("member count must be a non-negative integer, got %d", e.Count)
}

func (e *InvalidMemberCountError) Unwrap() error { return gathering.ErrInvalidMemberCount }

// GatheringService orchestrates gathering operations over a Store.
type GatheringService struct {
	store gathering.Store
}

// NewGatheringService creates the facade with the given storage backend.
func NewGatheringService(store gathering.Store) *GatheringService {
	return &GatheringService{store: store}
}

// CreateGathering creates a gathering with memberCount placeholder members.
func (s *GatheringService) CreateGathering(ctx context.Context, id string, memberCount int) (*gathering.Gathering, error) {
	if memberCount < 0 {
		return nil, &InvalidMemberCountError{Count: memberCount}
	}

	g, err := s.store.CreateGathering(ctx, id, memberCount)
	if err != nil {
		slog.Error("create gathering failed", "gathering_id", id, "error", err)
		return nil, err
	}

	slog.Info("gathering created", "gathering_id", g.ID, "total_members", g.TotalMembers)
	return g, nil
}

// GetGathering loads the full aggregate for the show operation.
func (s *GatheringService) GetGathering(ctx context.Context, id string) (*gathering.Gathering, error) {
	return s.store.GetGathering(ctx, id)
}

// ListGatherings returns all gatherings in creation order.
func (s *GatheringService) ListGatherings(ctx context.Context) ([]*gathering.Gathering, error) {
	return s.store.ListGatherings(ctx)
}

// AddExpense records an expense for the named member, claiming a
// placeholder when the name is unknown. Amount must be strictly positive.
func (s *GatheringService) AddExpense(ctx context.Context, gatheringID, memberName string, amount decimal.Decimal) (*gathering.Gathering, *gathering.Member, error) {
	if !amount.IsPositive() {
		return nil, nil, gathering.ErrInvalidAmount
	}

	g, member, err := s.store.AppendExpense(ctx, gatheringID, memberName, amount)
	if err != nil {
		slog.Error("add expense failed",
			"gathering_id", gatheringID, "member", memberName, "error", err)
		return nil, nil, err
	}

	slog.Info("expense recorded",
		"gathering_id", g.ID,
		"member", member.Name,
		"amount", amount.String(),
		"total_expenses", gathering.TotalExpenses(g).String(),
	)
	return g, member, nil
}

// RecordPayment records a payment for an existing member. Positive means
// the member paid into the pool, negative means they were reimbursed.
func (s *GatheringService) RecordPayment(ctx context.Context, gatheringID, memberName string, amount decimal.Decimal) (*gathering.Gathering, *gathering.Member, error) {
	g, member, err := s.store.AppendPayment(ctx, gatheringID, memberName, amount)
	if err != nil {
		slog.Error("record payment failed",
			"gathering_id", gatheringID, "member", memberName, "error", err)
		return nil, nil, err
	}

	slog.Info("payment recorded",
		"gathering_id", g.ID, "member", member.Name, "amount", amount.String())
	return g, member, nil
}

// RenameMember gives a member a new, unique name.
func (s *GatheringService) RenameMember(ctx context.Context, gatheringID, oldName, newName string) (*gathering.Member, error) {
	member, err := s.store.RenameMember(ctx, gatheringID, oldName, newName)
	if err != nil {
		slog.Error("rename member failed",
			"gathering_id", gatheringID, "old_name", oldName, "new_name", newName, "error", err)
		return nil, err
	}

	slog.Info("member renamed",
		"gathering_id", gatheringID, "old_name", oldName, "new_name", newName)
	return member, nil
}

// AddMember adds a named member to an open gathering.
func (s *GatheringService) AddMember(ctx context.Context, gatheringID, memberName string) (*gathering.Gathering, *gathering.Member, error) {
	g, member, err := s.store.AddMember(ctx, gatheringID, memberName)
	if err != nil {
		slog.Error("add member failed",
			"gathering_id", gatheringID, "member", memberName, "error", err)
		return nil, nil, err
	}

	slog.Info("member added",
		"gathering_id", g.ID, "member", member.Name, "total_members", g.TotalMembers)
	return g, member, nil
}

// RemoveMember removes an activity-free member from an open gathering.
func (s *GatheringService) RemoveMember(ctx context.Context, gatheringID, memberName string) (*gathering.Gathering, error) {
	g, err := s.store.RemoveMember(ctx, gatheringID, memberName)
	if err != nil {
		slog.Error("remove member failed",
			"gathering_id", gatheringID, "member", memberName, "error", err)
		return nil, err
	}

	slog.Info("member removed",
		"gathering_id", g.ID, "member", memberName, "total_members", g.TotalMembers)
	return g, nil
}

// CloseGathering transitions the gathering to CLOSED.
func (s *GatheringService) CloseGathering(ctx context.Context, gatheringID string) (*gathering.Gathering, error) {
	g, err := s.store.CloseGathering(ctx, gatheringID)
	if err != nil {
		slog.Error("close gathering failed", "gathering_id", gatheringID, "error", err)
		return nil, err
	}

	slog.Info("gathering closed", "gathering_id", g.ID)
	return g, nil
}

// DeleteGathering removes the gathering and all its data. Closed
// gatherings require force.
func (s *GatheringService) DeleteGathering(ctx context.Context, gatheringID string, force bool) error {
	if err := s.store.DeleteGathering(ctx, gatheringID, force); err != nil {
		slog.Error("delete gathering failed",
			"gathering_id", gatheringID, "force", force, "error", err)
		return err
	}

	slog.Info("gathering deleted", "gathering_id", gatheringID, "force", force)
	return nil
}

// CalculateReimbursements maps member names to settlement amounts:
// negative = member receives money, positive = member still owes. The
// aggregate is loaded once and returned alongside the map, so totals a
// caller derives from it come from the same snapshot.
func (s *GatheringService) CalculateReimbursements(ctx context.Context, gatheringID string) (*gathering.Gathering, map[string]decimal.Decimal, error) {
	g, err := s.store.GetGathering(ctx, gatheringID)
	if err != nil {
		return nil, nil, err
	}
	return g, gathering.Reimbursements(g), nil
}

// PaymentSummary derives the full settlement picture for a gathering.
func (s *GatheringService) PaymentSummary(ctx context.Context, gatheringID string) (gathering.Summary, error) {
	g, err := s.store.GetGathering(ctx, gatheringID)
	if err != nil {
		return gathering.Summary{}, err
	}
	return gathering.Summarize(g), nil
}
