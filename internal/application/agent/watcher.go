package agent

import (
	"context"
	"log/slog"

	"github.com/moltlabs/moltagent/internal/domain"
	"github.com/moltlabs/moltagent/internal/ports"
)

// Watcher detects meaningful on-chain wallet activity between ticks.
// Individual read failures leave that dimension unknown for the tick; the
// watcher itself never fails.
type Watcher struct {
	reader     ports.ChainReader
	wallet     string
	token      string
	thresholds domain.ActivityThresholds
}

// NewWatcher creates an activity watcher for the given wallet and token.
func NewWatcher(reader ports.ChainReader, wallet, token string, thresholds domain.ActivityThresholds) *Watcher {
	return &Watcher{reader: reader, wallet: wallet, token: token, thresholds: thresholds}
}

// Check reads the current chain view, diffs it against the snapshot in
// state, and writes the updated snapshot back so the next tick compares
// against the latest known values even when nothing changed.
func (w *Watcher) Check(ctx context.Context, state *domain.AgentState) domain.ActivityReport {
	var current domain.ActivitySnapshot

	if nonce, err := w.reader.Nonce(ctx, w.wallet); err != nil {
		slog.Warn("nonce read failed", "err", err)
	} else {
		current.Nonce = &nonce
	}

	if wei, err := w.reader.EthBalance(ctx, w.wallet); err != nil {
		slog.Warn("eth balance read failed", "err", err)
	} else {
		current.EthWei = wei
	}

	if raw, err := w.reader.TokenBalance(ctx, w.token, w.wallet); err != nil {
		slog.Warn("token balance read failed", "err", err)
	} else {
		current.TokenRaw = raw
	}

	if block, err := w.reader.BlockNumber(ctx); err != nil {
		slog.Warn("block number read failed", "err", err)
	} else {
		current.BlockNumber = &block
	}

	report := domain.DiffActivity(state.Activity, current, w.thresholds)
	state.Activity = report.Current
	return report
}
