// Package notify renders the agent's per-tick status for an operator
// console.
package notify

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/moltlabs/moltagent/internal/application/agent"
	"github.com/moltlabs/moltagent/internal/domain"
)

// Console prints a one-line tick summary, plus a channel-status table when
// table mode is on.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole creates a notifier writing to stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Report prints the tick outcome.
func (c *Console) Report(s agent.TickSummary) {
	now := time.Now().Format("15:04:05")
	if !s.Eventful {
		fmt.Fprintf(c.out, "[%s] quiet tick\n", now)
		return
	}

	line := fmt.Sprintf("[%s] %s", now, s.Decision.Action)
	if s.Decision.BlockedReason != "" {
		line += " (blocked: " + s.Decision.BlockedReason + ")"
	}
	if s.TxHash != "" {
		line += " tx " + s.TxHash
	}
	if s.PostsSent > 0 {
		line += fmt.Sprintf(" posted to %d channel(s)", s.PostsSent)
	}
	fmt.Fprintln(c.out, line)

	if c.table && s.State != nil {
		c.printChannels(s.State)
	}
}

func (c *Console) printChannels(state *domain.AgentState) {
	if len(state.Channels) == 0 {
		return
	}
	names := make([]string, 0, len(state.Channels))
	for name := range state.Channels {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(c.out)
	table.Header("Channel", "Failures", "Breaker", "Last post")

	now := time.Now()
	for _, name := range names {
		ch := state.Channels[name]

		breaker := "closed"
		if ch.BreakerOpen(now) {
			breaker = "open until " + time.UnixMilli(ch.DisabledUntilMs).Format("15:04:05")
		}
		lastPost := "never"
		if ch.LastPostMs > 0 {
			lastPost = time.UnixMilli(ch.LastPostMs).Format("Jan 2 15:04")
		}

		table.Append(name, fmt.Sprintf("%d", ch.FailureCount), breaker, lastPost)
	}
	table.Render()
}
