package ports

import (
	"context"
	"math/big"
)

// TradeExecutor submits swaps through the configured DEX router. It is
// consulted only after the guardrails approve a decision; sends are never
// retried blindly.
type TradeExecutor interface {
	// ExecuteBuy swaps spendWei of native ETH for the agent token and
	// returns the transaction hash.
	ExecuteBuy(ctx context.Context, spendWei *big.Int) (string, error)

	// ExecuteSell swaps amountRaw token units back to ETH and returns the
	// transaction hash.
	ExecuteSell(ctx context.Context, amountRaw *big.Int) (string, error)
}
