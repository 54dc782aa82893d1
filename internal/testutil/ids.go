package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs hands out "task-000001", "task-000002", ... instead of
// UUIDv7s, so test assertions and golden traces can name rows stably.
//
// Thread-safety: NewID is safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	seq    int
}

// NewSequentialIDs creates a generator with the given prefix.
// An empty prefix defaults to "id".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "id"
	}
	return &SequentialIDs{prefix: prefix}
}

// NewID returns the next ID in sequence.
//
// Implements engine.IDGenerator.
func (g *SequentialIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%06d", g.prefix, g.seq)
}

// Reset rewinds the sequence so a scenario can be replayed from scratch.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
