package scheduler

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moltlabs/moltagent/internal/application/agent"
	"github.com/moltlabs/moltagent/internal/domain"
	"github.com/moltlabs/moltagent/internal/ports"
)

type stubReader struct{}

func (stubReader) Nonce(context.Context, string) (uint64, error) {
	return 0, errors.New("rpc down")
}
func (stubReader) EthBalance(context.Context, string) (*big.Int, error) {
	return nil, errors.New("rpc down")
}
func (stubReader) TokenBalance(context.Context, string, string) (*big.Int, error) {
	return nil, errors.New("rpc down")
}
func (stubReader) BlockNumber(context.Context) (uint64, error) {
	return 0, errors.New("rpc down")
}

type stubBrain struct{}

func (stubBrain) Propose(context.Context, domain.BalanceSnapshot, domain.ActivityReport) (domain.Proposal, error) {
	return domain.Proposal{Action: domain.ActionHold}, nil
}

type memStore struct {
	mu    sync.Mutex
	state *domain.AgentState
}

func (m *memStore) Load(context.Context) (*domain.AgentState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		m.state = domain.NewAgentState()
	}
	return m.state, nil
}
func (m *memStore) Save(context.Context, *domain.AgentState) error { return nil }
func (m *memStore) Close() error                                   { return nil }

type captureReporter struct {
	mu        sync.Mutex
	summaries []agent.TickSummary
}

func (c *captureReporter) Report(s agent.TickSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summaries = append(c.summaries, s)
}

func (c *captureReporter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.summaries)
}

func newTestEngine() *agent.Engine {
	watcher := agent.NewWatcher(stubReader{}, "0xwallet", "0xtoken", domain.ActivityThresholds{})
	var store ports.StateStore = &memStore{}
	return agent.New(watcher, stubBrain{}, nil, nil, store, agent.Config{})
}

func TestTrigger_CollapsesPendingTriggers(t *testing.T) {
	s := New(newTestEngine(), nil)

	s.Trigger()
	s.Trigger()
	s.Trigger()
	assert.Len(t, s.trigger, 1, "extra triggers collapse into the pending one")
}

func TestRun_StartupTickAndManualTrigger(t *testing.T) {
	reporter := &captureReporter{}
	s := New(newTestEngine(), reporter)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, time.Minute) }()

	// The startup tick runs before the trigger loop, so the first report
	// is there by the time a manual trigger lands.
	require.Eventually(t, func() bool { return reporter.count() >= 1 },
		2*time.Second, 10*time.Millisecond)

	s.Trigger()
	require.Eventually(t, func() bool { return reporter.count() >= 2 },
		2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
