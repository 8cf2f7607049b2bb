package ports

import (
	"context"
	"math/big"
)

// ChainReader exposes the read-only wallet view the activity watcher needs.
// Implementations talk to an EVM RPC node; callers treat every failure as
// "unknown this tick", never as fatal.
type ChainReader interface {
	// Nonce returns the wallet's current transaction count.
	Nonce(ctx context.Context, address string) (uint64, error)

	// EthBalance returns the wallet's native balance in wei.
	EthBalance(ctx context.Context, address string) (*big.Int, error)

	// TokenBalance returns the ERC-20 balance in raw token units.
	TokenBalance(ctx context.Context, token, address string) (*big.Int, error)

	// BlockNumber returns the latest block height.
	BlockNumber(ctx context.Context) (uint64, error)
}
