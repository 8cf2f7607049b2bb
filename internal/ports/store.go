package ports

import (
	"context"

	"github.com/moltlabs/moltagent/internal/domain"
)

// StateStore persists the single AgentState record. Reads and writes are
// atomic from the agent's perspective; a failure here is the one error
// class that must propagate, since running on unpersisted state risks
// duplicate trades and posts.
type StateStore interface {
	// Load returns the persisted state, or a fresh zero state on first run.
	Load(ctx context.Context) (*domain.AgentState, error)

	// Save writes the full state.
	Save(ctx context.Context, state *domain.AgentState) error

	// Close releases the underlying storage.
	Close() error
}
