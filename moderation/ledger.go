package moderation

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Ledger counts warnings per user for the lifetime of the process.
// Counts never decay.
type Ledger struct {
	counts *xsync.MapOf[string, int]
}

func NewLedger() *Ledger {
	return &Ledger{counts: xsync.NewMapOf[string, int]()}
}

func (l *Ledger) Count(userID string) int {
	n, _ := l.counts.Load(userID)
	return n
}

// Increment adds one warning and returns the new count.
func (l *Ledger) Increment(userID string) int {
	n, _ := l.counts.Compute(userID, func(old int, loaded bool) (int, bool) {
		return old + 1, false
	})
	return n
}

// Reset clears a user's warnings and reports whether there were any.
func (l *Ledger) Reset(userID string) bool {
	_, loaded := l.counts.LoadAndDelete(userID)
	return loaded
}

func (l *Ledger) Snapshot() map[string]int {
	out := make(map[string]int, l.counts.Size())
	l.counts.Range(func(userID string, n int) bool {
		out[userID] = n
		return true
	})
	return out
}

func (l *Ledger) Len() int {
	return l.counts.Size()
}
