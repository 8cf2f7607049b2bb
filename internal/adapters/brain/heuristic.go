// Package brain produces trading proposals. Proposals carry no authority;
// the guardrail engine decides what actually executes.
package brain

import (
	"context"
	"math/big"

	"github.com/moltlabs/moltagent/internal/domain"
)

// Heuristic is the fallback proposer: a fixed balance-ratio rule that needs
// no external service.
type Heuristic struct {
	// BuyAboveWei proposes a BUY while the ETH balance stays above this
	// floor (keep gas money out of reach of the trade sizing).
	BuyAboveWei *big.Int
}

// NewHeuristic creates the rule-based proposer.
func NewHeuristic(buyAboveWei *big.Int) *Heuristic {
	if buyAboveWei == nil {
		buyAboveWei = new(big.Int)
	}
	return &Heuristic{BuyAboveWei: buyAboveWei}
}

// Propose implements ports.Brain.
func (h *Heuristic) Propose(_ context.Context, bal domain.BalanceSnapshot, activity domain.ActivityReport) (domain.Proposal, error) {
	switch {
	case bal.EthWei != nil && bal.EthWei.Cmp(h.BuyAboveWei) > 0:
		return domain.Proposal{
			Action:    domain.ActionBuy,
			Rationale: "ETH reserves above the working floor, accumulating",
		}, nil

	case bal.TokenRaw != nil && bal.TokenRaw.Sign() > 0 && activity.EthChanged:
		return domain.Proposal{
			Action:    domain.ActionSell,
			Rationale: "ETH moved and token position is open, trimming",
		}, nil

	default:
		return domain.Proposal{
			Action:    domain.ActionHold,
			Rationale: "nothing worth acting on",
		}, nil
	}
}
