// Package onchain talks to an EVM RPC node: read-only wallet views for the
// activity watcher and Uniswap V2-style swaps for the trade executor.
package onchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const readTimeout = 10 * time.Second

var erc20ABI abi.ABI

func init() {
	var err error
	erc20ABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "balanceOf",
			"type": "function",
			"stateMutability": "view",
			"inputs": [{"name": "account", "type": "address"}],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "approve",
			"type": "function",
			"inputs": [
				{"name": "spender", "type": "address"},
				{"name": "amount", "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		},
		{
			"name": "allowance",
			"type": "function",
			"stateMutability": "view",
			"inputs": [
				{"name": "owner", "type": "address"},
				{"name": "spender", "type": "address"}
			],
			"outputs": [{"name": "", "type": "uint256"}]
		}
	]`))
	if err != nil {
		panic("erc20 abi parse: " + err.Error())
	}
}

// Reader implements ports.ChainReader over an ethclient connection.
type Reader struct {
	client *ethclient.Client
}

// NewReader dials the RPC endpoint.
func NewReader(rpcURL string) (*Reader, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("onchain.NewReader: dial %s: %w", rpcURL, err)
	}
	return &Reader{client: client}, nil
}

// Nonce returns the wallet's pending transaction count.
func (r *Reader) Nonce(ctx context.Context, address string) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	nonce, err := r.client.PendingNonceAt(ctx, common.HexToAddress(address))
	if err != nil {
		return 0, fmt.Errorf("onchain.Nonce: %w", err)
	}
	return nonce, nil
}

// EthBalance returns the native balance in wei at the latest block.
func (r *Reader) EthBalance(ctx context.Context, address string) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	wei, err := r.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("onchain.EthBalance: %w", err)
	}
	return wei, nil
}

// TokenBalance calls balanceOf on the ERC-20 contract.
func (r *Reader) TokenBalance(ctx context.Context, token, address string) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	callData, err := erc20ABI.Pack("balanceOf", common.HexToAddress(address))
	if err != nil {
		return nil, fmt.Errorf("onchain.TokenBalance: pack: %w", err)
	}
	tokenAddr := common.HexToAddress(token)
	out, err := r.client.CallContract(ctx, callMsg(tokenAddr, callData), nil)
	if err != nil {
		return nil, fmt.Errorf("onchain.TokenBalance: call: %w", err)
	}
	results, err := erc20ABI.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("onchain.TokenBalance: unpack: %w", err)
	}
	balance, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("onchain.TokenBalance: unexpected result type %T", results[0])
	}
	return balance, nil
}

// BlockNumber returns the latest block height.
func (r *Reader) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	block, err := r.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("onchain.BlockNumber: %w", err)
	}
	return block, nil
}
