package agent

import (
	"context"
	"errors"
	"math/big"

	"github.com/moltlabs/moltagent/internal/domain"
	"github.com/moltlabs/moltagent/internal/ports"
)

// fakeTransport replays a scripted sequence of outcomes and counts calls.
type fakeTransport struct {
	name     string
	script   []ports.PostOutcome
	calls    int
	lastText string
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Post(_ context.Context, text string) ports.PostOutcome {
	f.calls++
	f.lastText = text
	if len(f.script) > 0 {
		out := f.script[0]
		f.script = f.script[1:]
		return out
	}
	return ports.PostOutcome{Success: true}
}

// fakeStore keeps the state in memory and counts saves.
type fakeStore struct {
	state   *domain.AgentState
	saves   int
	saveErr error
}

func (f *fakeStore) Load(context.Context) (*domain.AgentState, error) {
	if f.state == nil {
		f.state = domain.NewAgentState()
	}
	return f.state, nil
}

func (f *fakeStore) Save(_ context.Context, state *domain.AgentState) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.state = state
	f.saves++
	return nil
}

func (f *fakeStore) Close() error { return nil }

// fakeReader serves programmable chain values.
type fakeReader struct {
	nonce    uint64
	ethWei   *big.Int
	tokenRaw *big.Int
	block    uint64
	fail     bool
}

var errReaderDown = errors.New("rpc unavailable")

func (f *fakeReader) Nonce(context.Context, string) (uint64, error) {
	if f.fail {
		return 0, errReaderDown
	}
	return f.nonce, nil
}

func (f *fakeReader) EthBalance(context.Context, string) (*big.Int, error) {
	if f.fail {
		return nil, errReaderDown
	}
	return f.ethWei, nil
}

func (f *fakeReader) TokenBalance(context.Context, string, string) (*big.Int, error) {
	if f.fail {
		return nil, errReaderDown
	}
	return f.tokenRaw, nil
}

func (f *fakeReader) BlockNumber(context.Context) (uint64, error) {
	if f.fail {
		return 0, errReaderDown
	}
	return f.block, nil
}

// fakeBrain always proposes the same action.
type fakeBrain struct {
	proposal domain.Proposal
	err      error
	calls    int
}

func (f *fakeBrain) Propose(context.Context, domain.BalanceSnapshot, domain.ActivityReport) (domain.Proposal, error) {
	f.calls++
	return f.proposal, f.err
}

// fakeExecutor records the amounts it was asked to trade.
type fakeExecutor struct {
	buys  []*big.Int
	sells []*big.Int
	err   error
}

func (f *fakeExecutor) ExecuteBuy(_ context.Context, spendWei *big.Int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.buys = append(f.buys, spendWei)
	return "0xbuyhash", nil
}

func (f *fakeExecutor) ExecuteSell(_ context.Context, amountRaw *big.Int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sells = append(f.sells, amountRaw)
	return "0xsellhash", nil
}
