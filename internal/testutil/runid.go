package testutil

import (
	"fmt"
	"sync"
)

// RunIDs returns predetermined run IDs so reports and journal rows can be
// compared exactly.
//
// Thread-safety: RunIDs is safe for concurrent use via internal mutex.
type RunIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewRunIDs creates a generator that returns ids in order, then
// "run-<n>" once they are used up.
func NewRunIDs(ids ...string) *RunIDs {
	return &RunIDs{ids: ids}
}

// Generate returns the next run ID.
func (g *RunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.idx++
	if g.idx <= len(g.ids) {
		return g.ids[g.idx-1]
	}
	return fmt.Sprintf("run-%d", g.idx)
}
