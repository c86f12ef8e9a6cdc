/*
Package sqlite provides a SQLite-backed implementation of gathering.Store.

PURPOSE:
  Durable storage for gathering aggregates. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  gatherings: roster size, status, creation time
  members:    names, placeholder flags; unique (gathering_id, name)
  expenses:   append-only member spending
  payments:   append-only pool payments/reimbursements

ATOMICITY:
  Every mutation runs in one SQL transaction with the lifecycle guard
  evaluated against the row read inside that transaction. A failure rolls
  the whole operation back; no partial aggregate ever commits.

CASCADES:
  Foreign keys are ON with ON DELETE CASCADE, so deleting a gathering
  removes its members, expenses, and payments as one unit.

WAL MODE AND WRITER SERIALIZATION:
  SQLite is opened with WAL (Write-Ahead Logging): multiple readers don't
  block and crash recovery improves. WAL still allows only one writer, and
  an overlapping read-then-write transaction fails with SQLITE_BUSY instead
  of queueing on the busy handler. Mutations therefore hold a store-level
  mutex across their whole transaction; readers take the shared lock only.

USAGE:
  store, err := sqlite.New("./data/gatherings.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - gathering/store.go: the contract implemented here
  - gathering/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/gatherup/settlement-engine/gathering"
)

// Ensure Store implements gathering.Store.
var _ gathering.Store = (*Store)(nil)

// Store implements gathering.Store using SQLite.
type Store struct {
	// mu serializes writers: a read-then-write transaction that overlaps
	// another writer fails with SQLITE_BUSY instead of waiting, so the
	// serialization has to happen above the driver.
	mu sync.RWMutex
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS gatherings (
		id TEXT PRIMARY KEY,
		total_members INTEGER NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		gathering_id TEXT NOT NULL,
		name TEXT NOT NULL,
		placeholder INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (gathering_id) REFERENCES gatherings(id) ON DELETE CASCADE,
		UNIQUE (gathering_id, name)
	);

	-- Append-only: no UPDATE or DELETE statements target these two tables.
	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (member_id) REFERENCES members(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (member_id) REFERENCES members(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_members_gathering_id ON members(gathering_id);
	CREATE INDEX IF NOT EXISTS idx_expenses_member_id ON expenses(member_id);
	CREATE INDEX IF NOT EXISTS idx_payments_member_id ON payments(member_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx, so aggregate loading
// works inside and outside mutation transactions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// GATHERING LIFECYCLE
// =============================================================================

// CreateGathering atomically creates the gathering and its placeholder roster.
func (s *Store) CreateGathering(ctx context.Context, id string, memberCount int) (*gathering.Gathering, error) {
	if err := gathering.ValidateID(id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM gatherings WHERE id = ?", id,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check gathering: %w", err)
	}
	if exists > 0 {
		return nil, gathering.ErrAlreadyExists
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO gatherings (id, total_members, status, created_at) VALUES (?, ?, ?, ?)",
		id, memberCount, string(gathering.StatusOpen), now.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("failed to insert gathering: %w", err)
	}

	for i := 1; i <= memberCount; i++ {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO members (id, gathering_id, name, placeholder) VALUES (?, ?, ?, 1)",
			uuid.New().String(), id, gathering.PlaceholderName(i),
		); err != nil {
			return nil, fmt.Errorf("failed to insert placeholder member: %w", err)
		}
	}

	g, err := loadGathering(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return g, nil
}

// GetGathering loads the full aggregate.
func (s *Store) GetGathering(ctx context.Context, id string) (*gathering.Gathering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return loadGathering(ctx, s.db, id)
}

// ListGatherings loads all aggregates in creation order.
func (s *Store) ListGatherings(ctx context.Context) ([]*gathering.Gathering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id FROM gatherings ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list gatherings: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan gathering id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate gatherings: %w", err)
	}

	out := make([]*gathering.Gathering, 0, len(ids))
	for _, id := range ids {
		g, err := loadGathering(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// DeleteGathering cascades deletion through members, expenses, and payments.
func (s *Store) DeleteGathering(ctx context.Context, id string, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	g, err := loadGathering(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := gathering.EnsureCanDelete(g, force); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM gatherings WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete gathering: %w", err)
	}

	return tx.Commit()
}

// CloseGathering transitions OPEN -> CLOSED.
func (s *Store) CloseGathering(ctx context.Context, id string) (*gathering.Gathering, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	g, err := loadGathering(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := gathering.EnsureCanClose(g); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE gatherings SET status = ? WHERE id = ?",
		string(gathering.StatusClosed), id,
	); err != nil {
		return nil, fmt.Errorf("failed to close gathering: %w", err)
	}

	g, err = loadGathering(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return g, nil
}

// =============================================================================
// ROSTER MUTATIONS
// =============================================================================

// AddMember adds a named member and increments total_members.
func (s *Store) AddMember(ctx context.Context, gatheringID, name string) (*gathering.Gathering, *gathering.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	g, err := loadGathering(ctx, tx, gatheringID)
	if err != nil {
		return nil, nil, err
	}
	if err := gathering.EnsureOpen(g, "add member"); err != nil {
		return nil, nil, err
	}
	if g.MemberByName(name) != nil {
		return nil, nil, &gathering.DuplicateNameError{GatheringID: gatheringID, MemberName: name}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO members (id, gathering_id, name, placeholder) VALUES (?, ?, ?, 0)",
		uuid.New().String(), gatheringID, name,
	); err != nil {
		return nil, nil, fmt.Errorf("failed to insert member: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE gatherings SET total_members = total_members + 1 WHERE id = ?", gatheringID,
	); err != nil {
		return nil, nil, fmt.Errorf("failed to update member count: %w", err)
	}

	g, err = loadGathering(ctx, tx, gatheringID)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return g, g.MemberByName(name), nil
}

// RemoveMember removes an activity-free member and decrements total_members.
func (s *Store) RemoveMember(ctx context.Context, gatheringID, name string) (*gathering.Gathering, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	g, err := loadGathering(ctx, tx, gatheringID)
	if err != nil {
		return nil, err
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

	if _, err := tx.ExecContext(ctx, "DELETE FROM members WHERE id = ?", string(member.ID)); err != nil {
		return nil, fmt.Errorf("failed to delete member: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE gatherings SET total_members = total_members - 1 WHERE id = ?", gatheringID,
	); err != nil {
		return nil, fmt.Errorf("failed to update member count: %w", err)
	}

	g, err = loadGathering(ctx, tx, gatheringID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return g, nil
}

// RenameMember renames an existing member and clears its placeholder flag.
func (s *Store) RenameMember(ctx context.Context, gatheringID, oldName, newName string) (*gathering.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	g, err := loadGathering(ctx, tx, gatheringID)
	if err != nil {
		return nil, err
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

	if _, err := tx.ExecContext(ctx,
		"UPDATE members SET name = ?, placeholder = 0 WHERE id = ?",
		newName, string(member.ID),
	); err != nil {
		return nil, fmt.Errorf("failed to rename member: %w", err)
	}

	g, err = loadGathering(ctx, tx, gatheringID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return g.MemberByName(newName), nil
}

// =============================================================================
// ACTIVITY APPENDS
// =============================================================================

// AppendExpense resolves the target member (claiming a placeholder if
// needed) and inserts the expense, all in one transaction.
func (s *Store) AppendExpense(ctx context.Context, gatheringID, memberName string, amount decimal.Decimal) (*gathering.Gathering, *gathering.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	g, err := loadGathering(ctx, tx, gatheringID)
	if err != nil {
		return nil, nil, err
	}
	if err := gathering.EnsureOpen(g, "add expense"); err != nil {
		return nil, nil, err
	}

	res, err := gathering.ResolveExpenseTarget(g, memberName)
	if err != nil {
		return nil, nil, err
	}
	if res.Rename {
		if _, err := tx.ExecContext(ctx,
			"UPDATE members SET name = ?, placeholder = 0 WHERE id = ?",
			memberName, string(res.Member.ID),
		); err != nil {
			return nil, nil, fmt.Errorf("failed to claim placeholder member: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO expenses (id, member_id, amount, created_at) VALUES (?, ?, ?, ?)",
		uuid.New().String(), string(res.Member.ID), amount.String(),
		time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return nil, nil, fmt.Errorf("failed to insert expense: %w", err)
	}

	g, err = loadGathering(ctx, tx, gatheringID)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return g, g.MemberByName(memberName), nil
}

// AppendPayment inserts a payment for an exactly-named member.
func (s *Store) AppendPayment(ctx context.Context, gatheringID, memberName string, amount decimal.Decimal) (*gathering.Gathering, *gathering.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	g, err := loadGathering(ctx, tx, gatheringID)
	if err != nil {
		return nil, nil, err
	}
	if err := gathering.EnsureOpen(g, "record payment"); err != nil {
		return nil, nil, err
	}
	member := g.MemberByName(memberName)
	if member == nil {
		return nil, nil, &gathering.MemberNotFoundError{GatheringID: gatheringID, MemberName: memberName}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO payments (id, member_id, amount, created_at) VALUES (?, ?, ?, ?)",
		uuid.New().String(), string(member.ID), amount.String(),
		time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return nil, nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	g, err = loadGathering(ctx, tx, gatheringID)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return g, g.MemberByName(memberName), nil
}

// =============================================================================
// AGGREGATE LOADING
// =============================================================================

// loadGathering reconstructs the full aggregate: gathering row, members in
// creation order, each with its expenses and payments. Never partial.
func loadGathering(ctx context.Context, q querier, id string) (*gathering.Gathering, error) {
	g := &gathering.Gathering{}
	var status, createdAt string
	err := q.QueryRowContext(ctx,
		"SELECT id, total_members, status, created_at FROM gatherings WHERE id = ?", id,
	).Scan(&g.ID, &g.TotalMembers, &status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, &gathering.NotFoundError{GatheringID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load gathering: %w", err)
	}
	g.Status = gathering.Status(status)
	if g.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse gathering timestamp: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		"SELECT id, name, placeholder FROM members WHERE gathering_id = ? ORDER BY rowid", id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m gathering.Member
		var memberID string
		if err := rows.Scan(&memberID, &m.Name, &m.Placeholder); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.ID = gathering.MemberID(memberID)
		g.Members = append(g.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	for i := range g.Members {
		m := &g.Members[i]
		if m.Expenses, err = loadExpenses(ctx, q, m.ID); err != nil {
			return nil, err
		}
		if m.Payments, err = loadPayments(ctx, q, m.ID); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func loadExpenses(ctx context.Context, q querier, memberID gathering.MemberID) ([]gathering.Expense, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, amount, created_at FROM expenses WHERE member_id = ? ORDER BY rowid",
		string(memberID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load expenses: %w", err)
	}
	defer rows.Close()

	var out []gathering.Expense
	for rows.Next() {
		e := gathering.Expense{MemberID: memberID}
		var amount, createdAt string
		if err := rows.Scan(&e.ID, &amount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse expense amount: %w", err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse expense timestamp: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func loadPayments(ctx context.Context, q querier, memberID gathering.MemberID) ([]gathering.Payment, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, amount, created_at FROM payments WHERE member_id = ? ORDER BY rowid",
		string(memberID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	defer rows.Close()

	var out []gathering.Payment
	for rows.Next() {
		p := gathering.Payment{MemberID: memberID}
		var amount, createdAt string
		if err := rows.Scan(&p.ID, &amount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse payment amount: %w", err)
		}
		if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse payment timestamp: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
