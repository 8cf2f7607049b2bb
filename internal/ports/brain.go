package ports

import (
	"context"

	"github.com/moltlabs/moltagent/internal/domain"
)

// Brain proposes a trading action for an eventful tick. Its output carries
// no authority; the guardrail engine decides what, if anything, executes.
// A failing brain should degrade to a HOLD proposal, not an error the tick
// has to handle.
type Brain interface {
	Propose(ctx context.Context, bal domain.BalanceSnapshot, activity domain.ActivityReport) (domain.Proposal, error)
}
