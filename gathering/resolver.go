/*
resolver.go - Placeholder-member resolution for expense recording

PURPOSE:
  Expenses can be recorded by name before the roster's real names are
  known. The resolver maps a target name onto a member:

    1. Exact name match -> use that member directly.
    2. Otherwise, the placeholder with the lowest numeric suffix is
       claimed: it is renamed in place to the target name and its
       placeholder flag cleared.
    3. No match and no placeholder left -> MemberNotFound.

  Only expense recording resolves this way. Payments, renames, and removals
  require an exact existing name.

ATOMICITY:
  Resolution must commit together with the expense insert and the rename.
  Store implementations call Resolve inside their mutation transaction and
  apply the returned rename there; the resolver itself never mutates.

SEE ALSO:
  - store.go: AppendExpense, the only caller
  - types.go: PlaceholderName, the generated-name format
*/
package gathering

import "sort"

// Resolution is the outcome of resolving an expense target name.
type Resolution struct {
	// Member is the matched or claimed member (as loaded; not yet renamed).
	Member *Member

	// Rename is true when Member is a placeholder being claimed: the store
	// must rename it to the target name and clear its placeholder flag in
	// the same transaction as the expense insert.
	Rename bool
}

// ResolveExpenseTarget locates the member an expense for name should be
// recorded against, per the placeholder-claiming rule above.
func ResolveExpenseTarget(g *Gathering, name string) (Resolution, error) {
	if m := g.MemberByName(name); m != nil {
		return Resolution{Member: m}, nil
	}

	// Collect unclaimed placeholders, lowest numeric suffix first. The
	// generated names are zero-padded to a fixed width, so lexicographic
	// order is numeric order.
	var placeholders []*Member
	for i := range g.Members {
		if g.Members[i].Placeholder {
			placeholders = append(placeholders, &g.Members[i])
		}
	}
	if len(placeholders) == 0 {
		return Resolution{}, &MemberNotFoundError{GatheringID: g.ID, MemberName: name}
	}
	sort.Slice(placeholders, func(i, j int) bool {
		return placeholders[i].Name < placeholders[j].Name
	})

	return Resolution{Member: placeholders[0], Rename: true}, nil
}
