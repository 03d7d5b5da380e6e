// internal/solitaire/freeze.go
package solitaire

import (
	"math/rand"
	"time"
)

// Freeze marks a tableau column non-interactive until the given expiry.
// Concurrent freezes on different columns are independent; re-freezing the
// same column keeps the later expiry.
func (b *Board) Freeze(col int, until time.Time) {
	if col < 0 || col >= TableauColumns {
		return
	}
	if cur, ok := b.frozen[col]; ok && cur.After(until) {
		return
	}
	b.frozen[col] = until
}

// IsFrozen reports whether the column is locked at the given instant. Expired
// entries are pruned as they are observed.
func (b *Board) IsFrozen(col int, now time.Time) bool {
	until, ok := b.frozen[col]
	if !ok {
		return false
	}
	if !now.Before(until) {
		delete(b.frozen, col)
		return false
	}
	return true
}

// FrozenColumns returns the columns still locked at now, with their expiries.
func (b *Board) FrozenColumns(now time.Time) map[int]time.Time {
	out := make(map[int]time.Time, len(b.frozen))
	for col, until := range b.frozen {
		if now.Before(until) {
			out[col] = until
		} else {
			delete(b.frozen, col)
		}
	}
	return out
}

// RandomFreezableColumn picks uniformly at random a tableau column with at
// least one card. It reports false when no column is eligible, in which case
// the attack effect is dropped.
func (b *Board) RandomFreezableColumn(r *rand.Rand) (int, bool) {
	eligible := make([]int, 0, TableauColumns)
	for col := 0; col < TableauColumns; col++ {
		if len(b.Tableau[col]) > 0 {
			eligible = append(eligible, col)
		}
	}
	if len(eligible) == 0 {
		return 0, false
	}
	return eligible[r.Intn(len(eligible))], true
}
