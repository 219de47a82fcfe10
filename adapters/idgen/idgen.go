// Package idgen provides invocation ID generators.
package idgen

import (
	"fmt"
	"sync/atomic"

	"github.com/artpar/maxrange/ports"
	"github.com/google/uuid"
)

// UUID generates random (v4) invocation IDs.
type UUID struct{}

// New generates a new UUID v4.
func (UUID) New() string {
	return uuid.NewString()
}

// Sequential generates "<prefix>-<n>" IDs (for testing).
type Sequential struct {
	prefix  string
	counter atomic.Uint64
}

// NewSequential creates a sequential ID generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New generates the next sequential ID.
func (s *Sequential) New() string {
	return fmt.Sprintf("%s-%d", s.prefix, s.counter.Add(1))
}

// Ensure interface compliance.
var (
	_ ports.IDGenerator = UUID{}
	_ ports.IDGenerator = (*Sequential)(nil)
)
