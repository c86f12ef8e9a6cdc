// Package store provides an in-memory gathering.Store implementation
// (for testing/dev).
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gatherup/settlement-engine/gathering"
)

// Ensure Memory implements gathering.Store.
var _ gathering.Store = (*Memory)(nil)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory keeps aggregates in a mutex-guarded map. Every mutation validates
// against current state before touching it, so a failed operation leaves
// nothing behind; aggregates returned to callers are deep copies.
type Memory struct {
	mu         sync.RWMutex
	gatherings map[string]*gathering.Gathering
	order      []string // creation order for listing
}

func NewMemory() *Memory {
	return &Memory{gatherings: make(map[string]*gathering.Gathering)}
}

// Close is a no-op for the memory store.
func (m *Memory) Close() error { return nil }

// =============================================================================
// GATHERING LIFECYCLE
// =============================================================================

func (m *Memory) CreateGathering(_ context.Context, id string, memberCount int) (*gathering.Gathering, error) {
	if err := gathering.ValidateID(id); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.gatherings[id]; exists {
		return nil, gathering.ErrAlreadyExists
	}

	g := &gathering.Gathering{
		ID:           id,
		TotalMembers: memberCount,
		Status:       gathering.StatusOpen,
		CreatedAt:    time.Now(),
	}
	for i := 1; i <= memberCount; i++ {
		g.Members = append(g.Members, gathering.Member{
			ID:          gathering.MemberID(uuid.New().String()),
			Name:        gathering.PlaceholderName(i),
			Placeholder: true,
		})
	}

	m.gatherings[id] = g
	m.order = append(m.order, id)
	return copyGathering(g), nil
}

func (m *Memory) GetGathering(_ context.Context, id string) (*gathering.Gathering, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.gatherings[id]
	if !ok {
		return nil, &gathering.NotFoundError{GatheringID: id}
	}
	return copyGathering(g), nil
}

func (m *Memory) ListGatherings(_ context.Context) ([]*gathering.Gathering, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*gathering.Gathering, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, copyGathering(m.gatherings[id]))
	}
	return out, nil
}

func (m *Memory) DeleteGathering(_ context.Context, id string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.gatherings[id]
	if !ok {
		return &gathering.NotFoundError{GatheringID: id}
	}
	if err := gathering.EnsureCanDelete(g, force); err != nil {
		return err
	}

	// Members, expenses, and payments live inside the aggregate, so the
	// cascade is the map delete itself.
	delete(m.gatherings, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) CloseGathering(_ context.Context, id string) (*gathering.Gathering, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.gatherings[id]
	if !ok {
		return nil, &gathering.NotFoundError{GatheringID: id}
	}
	if err := gathering.EnsureCanClose(g); err != nil {
		return nil, err
	}

	g.Status = gathering.StatusClosed
	return copyGathering(g), nil
}

// =============================================================================
// ROSTER MUTATIONS
// =============================================================================

func (m *Memory) AddMember(_ context.Context, gatheringID, name string) (*gathering.Gathering, *gathering.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.gatherings[gatheringID]
	if !ok {
		return nil, nil, &gathering.NotFoundError{GatheringID: gatheringID}
	}
	if err := gathering.EnsureOpen(g, "add member"); err != nil {
		return nil, nil, err
	}
	if g.MemberByName(name) != nil {
		return nil, nil, &gathering.DuplicateNameError{GatheringID: gatheringID, MemberName: name}
	}

	g.Members = append(g.Members, gathering.Member{
		ID:   gathering.MemberID(uuid.New().String()),
		Name: name,
	})
	g.TotalMembers++

	cp := copyGathering(g)
	return cp, cp.MemberByName(name), nil
}

func (m *Memory) RemoveMember(_ context.Context, gatheringID, name string) (*gathering.Gathering, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.gatherings[gatheringID]
	if !ok {
		return nil, &gathering.NotFoundError{GatheringID: gatheringID}
	}
	if err := gathering.EnsureOpen(g, "remove member"); err != nil {
		return nil, err
	}
	member := g.MemberByName(name)
	if member == nil {
		return nil, &gathering.MemberNotFoundError{GatheringID: gatheringID, MemberName: name}
	}
	if member.HasActivity() {
		return nil, &gathering.MemberActivityError{GatheringID: gatheringID, MemberName: name}
	}

	for i := range g.Members {
		if g.Members[i].ID == member.ID {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			break
		}
	}
	g.TotalMembers--
	return copyGathering(g), nil
}

func (m *Memory) RenameMember(_ context.Context, gatheringID, oldName, newName string) (*gathering.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.gatherings[gatheringID]
	if !ok {
		return nil, &gathering.NotFoundError{GatheringID: gatheringID}
	}
	if err := gathering.EnsureOpen(g, "rename member"); err != nil {
		return nil, err
	}
	member := g.MemberByName(oldName)
	if member == nil {
		return nil, &gathering.MemberNotFoundError{GatheringID: gatheringID, MemberName: oldName}
	}
	if g.MemberByName(newName) != nil {
		return nil, &gathering.DuplicateNameError{GatheringID: gatheringID, MemberName: newName}
	}

	member.Name = newName
	member.Placeholder = false

	cp := copyMember(member)
	return &cp, nil
}

// =============================================================================
// ACTIVITY APPENDS
// =============================================================================

func (m *Memory) AppendExpense(_ context.Context, gatheringID, memberName string, amount decimal.Decimal) (*gathering.Gathering, *gathering.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.gatherings[gatheringID]
	if !ok {
		return nil, nil, &gathering.NotFoundError{GatheringID: gatheringID}
	}
	if err := gathering.EnsureOpen(g, "add expense"); err != nil {
		return nil, nil, err
	}

	res, err := gathering.ResolveExpenseTarget(g, memberName)
	if err != nil {
		return nil, nil, err
	}
	if res.Rename {
		res.Member.Name = memberName
		res.Member.Placeholder = false
	}

	res.Member.Expenses = append(res.Member.Expenses, gathering.Expense{
		ID:        uuid.New().String(),
		MemberID:  res.Member.ID,
		Amount:    amount,
		CreatedAt: time.Now(),
	})

	cp := copyGathering(g)
	return cp, cp.MemberByName(memberName), nil
}

func (m *Memory) AppendPayment(_ context.Context, gatheringID, memberName string, amount decimal.Decimal) (*gathering.Gathering, *gathering.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.gatherings[gatheringID]
	if !ok {
		return nil, nil, &gathering.NotFoundError{GatheringID: gatheringID}
	}
	if err := gathering.EnsureOpen(g, "record payment"); err != nil {
		return nil, nil, err
	}
	member := g.MemberByName(memberName)
	if member == nil {
		return nil, nil, &gathering.MemberNotFoundError{GatheringID: gatheringID, MemberName: memberName}
	}

	member.Payments = append(member.Payments, gathering.Payment{
		ID:        uuid.New().String(),
		MemberID:  member.ID,
		Amount:    amount,
		CreatedAt: time.Now(),
	})

	cp := copyGathering(g)
	return cp, cp.MemberByName(memberName), nil
}

// =============================================================================
// DEEP COPIES - Callers never share slices with internal state
// =============================================================================

func copyGathering(g *gathering.Gathering) *gathering.Gathering {
	cp := *g
	cp.Members = make([]gathering.Member, len(g.Members))
	for i := range g.Members {
		cp.Members[i] = copyMember(&g.Members[i])
	}
	return &cp
}

func copyMember(m *gathering.Member) gathering.Member {
	cp := *m
	cp.Expenses = append([]gathering.Expense(nil), m.Expenses...)
	cp.Payments = append([]gathering.Payment(nil), m.Payments...)
	return cp
}
