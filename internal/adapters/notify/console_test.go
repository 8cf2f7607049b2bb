package notify_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/moltlabs/moltagent/internal/adapters/notify"
	"github.com/moltlabs/moltagent/internal/application/agent"
	"github.com/moltlabs/moltagent/internal/domain"
)

func TestConsole_QuietTick(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	c.Report(agent.TickSummary{Eventful: false})

	assert.Contains(t, buf.String(), "quiet tick")
}

func TestConsole_BlockedDecision(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	c.Report(agent.TickSummary{
		Eventful: true,
		Decision: domain.Decision{Action: domain.ActionHold, BlockedReason: "kill switch engaged"},
	})

	out := buf.String()
	assert.Contains(t, out, "HOLD")
	assert.Contains(t, out, "kill switch engaged")
}

func TestConsole_ChannelTable(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, true)

	state := domain.NewAgentState()
	ch := state.Channel("moltbook")
	ch.FailureCount = 2
	ch.LastPostMs = time.Now().UnixMilli()

	c.Report(agent.TickSummary{
		Eventful: true,
		Decision: domain.Decision{Action: domain.ActionHold},
		State:    state,
	})

	out := buf.String()
	assert.Contains(t, out, "moltbook")
	assert.Contains(t, out, "closed")
}
