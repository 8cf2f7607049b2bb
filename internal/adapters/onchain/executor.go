package onchain

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	swapGasLimit    = uint64(300_000)
	approveGasLimit = uint64(80_000)
	swapDeadline    = 10 * time.Minute
)

var routerABI abi.ABI

func init() {
	var err error
	routerABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "swapExactETHForTokens",
			"type": "function",
			"stateMutability": "payable",
			"inputs": [
				{"name": "amountOutMin", "type": "uint256"},
				{"name": "path", "type": "address[]"},
				{"name": "to", "type": "address"},
				{"name": "deadline", "type": "uint256"}
			],
			"outputs": [{"name": "amounts", "type": "uint256[]"}]
		},
		{
			"name": "swapExactTokensForETH",
			"type": "function",
			"inputs": [
				{"name": "amountIn", "type": "uint256"},
				{"name": "amountOutMin", "type": "uint256"},
				{"name": "path", "type": "address[]"},
				{"name": "to", "type": "address"},
				{"name": "deadline", "type": "uint256"}
			],
			"outputs": [{"name": "amounts", "type": "uint256[]"}]
		},
		{
			"name": "getAmountsOut",
			"type": "function",
			"stateMutability": "view",
			"inputs": [
				{"name": "amountIn", "type": "uint256"},
				{"name": "path", "type": "address[]"}
			],
			"outputs": [{"name": "amounts", "type": "uint256[]"}]
		},
		{
			"name": "WETH",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [{"name": "", "type": "address"}]
		}
	]`))
	if err != nil {
		panic("router abi parse: " + err.Error())
	}
}

// Executor implements ports.TradeExecutor against a Uniswap V2-compatible
// router. One send per call, no blind retries: a transaction send is not
// idempotent.
type Executor struct {
	client      *ethclient.Client
	privateKey  []byte
	address     common.Address
	router      common.Address
	weth        common.Address
	token       common.Address
	chainID     *big.Int
	slippageBps int64
}

// NewExecutor creates a trade executor. privateKeyHex is accepted with or
// without the 0x prefix; slippageBps bounds how far below the quoted
// output a fill may land.
func NewExecutor(rpcURL, privateKeyHex, routerAddr, tokenAddr string, chainID int64, slippageBps int) (*Executor, error) {
	pkBytes, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("onchain.NewExecutor: decode private key: %w", err)
	}
	privKey, err := crypto.ToECDSA(pkBytes)
	if err != nil {
		return nil, fmt.Errorf("onchain.NewExecutor: invalid private key: %w", err)
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("onchain.NewExecutor: dial %s: %w", rpcURL, err)
	}

	e := &Executor{
		client:      client,
		privateKey:  pkBytes,
		address:     crypto.PubkeyToAddress(privKey.PublicKey),
		router:      common.HexToAddress(routerAddr),
		token:       common.HexToAddress(tokenAddr),
		chainID:     big.NewInt(chainID),
		slippageBps: int64(slippageBps),
	}

	wethAddr, err := e.callWETH(context.Background())
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("onchain.NewExecutor: resolve WETH: %w", err)
	}
	e.weth = wethAddr
	return e, nil
}

// ExecuteBuy swaps spendWei of ETH for the agent token.
func (e *Executor) ExecuteBuy(ctx context.Context, spendWei *big.Int) (string, error) {
	path := []common.Address{e.weth, e.token}
	minOut, err := e.quoteMinOut(ctx, spendWei, path)
	if err != nil {
		return "", fmt.Errorf("onchain.ExecuteBuy: quote: %w", err)
	}

	deadline := big.NewInt(time.Now().Add(swapDeadline).Unix())
	callData, err := routerABI.Pack("swapExactETHForTokens", minOut, path, e.address, deadline)
	if err != nil {
		return "", fmt.Errorf("onchain.ExecuteBuy: pack: %w", err)
	}

	return e.send(ctx, e.router, spendWei, callData)
}

// ExecuteSell approves the router for amountRaw tokens if needed, then
// swaps them back to ETH.
func (e *Executor) ExecuteSell(ctx context.Context, amountRaw *big.Int) (string, error) {
	if err := e.ensureAllowance(ctx, amountRaw); err != nil {
		return "", fmt.Errorf("onchain.ExecuteSell: %w", err)
	}

	path := []common.Address{e.token, e.weth}
	minOut, err := e.quoteMinOut(ctx, amountRaw, path)
	if err != nil {
		return "", fmt.Errorf("onchain.ExecuteSell: quote: %w", err)
	}

	deadline := big.NewInt(time.Now().Add(swapDeadline).Unix())
	callData, err := routerABI.Pack("swapExactTokensForETH", amountRaw, minOut, path, e.address, deadline)
	if err != nil {
		return "", fmt.Errorf("onchain.ExecuteSell: pack: %w", err)
	}

	return e.send(ctx, e.router, big.NewInt(0), callData)
}

// quoteMinOut asks the router for the expected output and applies the
// slippage bound.
func (e *Executor) quoteMinOut(ctx context.Context, amountIn *big.Int, path []common.Address) (*big.Int, error) {
	callData, err := routerABI.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("pack getAmountsOut: %w", err)
	}
	out, err := e.client.CallContract(ctx, callMsg(e.router, callData), nil)
	if err != nil {
		return nil, fmt.Errorf("call getAmountsOut: %w", err)
	}
	results, err := routerABI.Unpack("getAmountsOut", out)
	if err != nil {
		return nil, fmt.Errorf("unpack getAmountsOut: %w", err)
	}
	amounts, ok := results[0].([]*big.Int)
	if !ok || len(amounts) == 0 {
		return nil, fmt.Errorf("unexpected getAmountsOut result")
	}

	quoted := amounts[len(amounts)-1]
	minOut := new(big.Int).Mul(quoted, big.NewInt(10000-e.slippageBps))
	return minOut.Div(minOut, big.NewInt(10000)), nil
}

// ensureAllowance approves the router for the sell amount when the current
// allowance is insufficient.
func (e *Executor) ensureAllowance(ctx context.Context, amount *big.Int) error {
	callData, err := erc20ABI.Pack("allowance", e.address, e.router)
	if err != nil {
		return fmt.Errorf("pack allowance: %w", err)
	}
	out, err := e.client.CallContract(ctx, callMsg(e.token, callData), nil)
	if err != nil {
		return fmt.Errorf("call allowance: %w", err)
	}
	results, err := erc20ABI.Unpack("allowance", out)
	if err != nil {
		return fmt.Errorf("unpack allowance: %w", err)
	}
	allowance, ok := results[0].(*big.Int)
	if !ok {
		return fmt.Errorf("unexpected allowance result type %T", results[0])
	}
	if allowance.Cmp(amount) >= 0 {
		return nil
	}

	approveData, err := erc20ABI.Pack("approve", e.router, amount)
	if err != nil {
		return fmt.Errorf("pack approve: %w", err)
	}
	txHash, err := e.send(ctx, e.token, big.NewInt(0), approveData)
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}

	receiptCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	if err := e.waitMined(receiptCtx, common.HexToHash(txHash)); err != nil {
		return fmt.Errorf("approve not mined: %w", err)
	}
	return nil
}

// send signs and submits a legacy transaction, returning its hash.
func (e *Executor) send(ctx context.Context, to common.Address, value *big.Int, callData []byte) (string, error) {
	privKey, err := crypto.ToECDSA(e.privateKey)
	if err != nil {
		return "", fmt.Errorf("private key: %w", err)
	}

	nonce, err := e.client.PendingNonceAt(ctx, e.address)
	if err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("gas price: %w", err)
	}

	gasEstimate, err := e.client.EstimateGas(ctx, ethereum.CallMsg{
		From:     e.address,
		To:       &to,
		Value:    value,
		GasPrice: gasPrice,
		Data:     callData,
	})
	if err != nil {
		gasEstimate = swapGasLimit
	}
	gasEstimate = gasEstimate * 12 / 10 // 20% buffer

	tx := types.NewTransaction(nonce, to, value, gasEstimate, gasPrice, callData)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(e.chainID), privKey)
	if err != nil {
		return "", fmt.Errorf("sign tx: %w", err)
	}
	if err := e.client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("send tx: %w", err)
	}
	return signedTx.Hash().Hex(), nil
}

// waitMined polls for the receipt until ctx expires.
func (e *Executor) waitMined(ctx context.Context, hash common.Hash) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		receipt, err := e.client.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("tx %s reverted", hash.Hex())
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Executor) callWETH(ctx context.Context) (common.Address, error) {
	callData, err := routerABI.Pack("WETH")
	if err != nil {
		return common.Address{}, fmt.Errorf("pack WETH: %w", err)
	}
	out, err := e.client.CallContract(ctx, callMsg(e.router, callData), nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("call WETH: %w", err)
	}
	results, err := routerABI.Unpack("WETH", out)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpack WETH: %w", err)
	}
	addr, ok := results[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected WETH result type %T", results[0])
	}
	return addr, nil
}

func callMsg(to common.Address, data []byte) ethereum.CallMsg {
	return ethereum.CallMsg{To: &to, Data: data}
}
