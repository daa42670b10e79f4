package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/shrubbery/internal/dependencies/idgen"
)

// MockIDGenerator is a mock implementation of Generator for testing.
// Queued IDs are returned first, then sequential "<prefix>-N" IDs.
type MockIDGenerator struct {
	mu     sync.Mutex
	Queued []string
	Prefix string
	next   int
}

// Ensure MockIDGenerator implements Generator
var _ idgen.Generator = (*MockIDGenerator)(nil)

// NewMockIDGenerator creates a MockIDGenerator with the given sequential prefix
func NewMockIDGenerator(prefix string) *MockIDGenerator {
	return &MockIDGenerator{Prefix: prefix}
}

// NewID returns the next queued ID, or the next sequential one if none remain
func (g *MockIDGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.Queued) > 0 {
		id := g.Queued[0]
		g.Queued = g.Queued[1:]
		return id
	}
	g.next++
	return fmt.Sprintf("%s-%d", g.Prefix, g.next)
}

// Queue adds IDs to be returned before sequential ones
func (g *MockIDGenerator) Queue(ids ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Queued = append(g.Queued, ids...)
}
