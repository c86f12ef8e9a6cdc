/*
lifecycle.go - Gathering state machine guards

PURPOSE:
  A gathering starts OPEN and can transition once to CLOSED. CLOSED is
  terminal for mutation but not for reads or deletion. There is no reopen.

GUARDED OPERATIONS (fail with GatheringClosed when CLOSED):
  add expense, record payment, rename member, add member, remove member.

UNGUARDED:
  show, list, calculate. Delete has its own guard (force flag). Close is
  only valid from OPEN and fails with AlreadyClosed otherwise.

  Store implementations call these guards inside their mutation
  transactions, so the persisted status is authoritative.
*/
package gathering

// EnsureOpen rejects mutations against a closed gathering. The operation
// name is carried into the error message for the caller.
func EnsureOpen(g *Gathering, operation string) error {
	if g.Status == StatusClosed {
		return &ClosedError{GatheringID: g.ID, Operation: operation}
	}
	return nil
}

// EnsureCanClose validates the OPEN -> CLOSED transition.
func EnsureCanClose(g *Gathering) error {
	if g.Status == StatusClosed {
		return ErrAlreadyClosed
	}
	return nil
}

// EnsureCanDelete validates deletion: closed gatherings require force.
func EnsureCanDelete(g *Gathering, force bool) error {
	if g.Status == StatusClosed && !force {
		return &ClosedError{GatheringID: g.ID, Operation: "delete gathering (use force to override)"}
	}
	return nil
}
