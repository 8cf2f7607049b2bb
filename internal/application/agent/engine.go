package agent

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/moltlabs/moltagent/internal/domain"
	"github.com/moltlabs/moltagent/internal/metrics"
	"github.com/moltlabs/moltagent/internal/ports"
)

// Config holds the per-tick policy for the agent engine.
type Config struct {
	Guardrails domain.Guardrails
	// PostReceipts controls whether approved trades produce a social
	// receipt at all.
	PostReceipts bool
}

// TickSummary is what one tick produced, for logging and the console
// notifier.
type TickSummary struct {
	TickID    string
	Eventful  bool
	Proposal  domain.Proposal
	Decision  domain.Decision
	TxHash    string
	PostsSent int
	State     *domain.AgentState
}

// Engine runs the agent's decision cycle: activity watch, brain proposal,
// guardrail evaluation, optional trade execution, receipt posting. One
// instance owns the AgentState for the lifetime of the process; ticks are
// strictly serialized.
type Engine struct {
	watcher  *Watcher
	brain    ports.Brain
	executor ports.TradeExecutor
	posters  []*Poster
	store    ports.StateStore
	cfg      Config
	rng      *rand.Rand
	now      func() time.Time

	inFlight atomic.Bool
}

// New wires the tick engine. executor may be nil when no router is
// configured; the guardrails block execution in that case anyway.
func New(watcher *Watcher, brain ports.Brain, executor ports.TradeExecutor, posters []*Poster, store ports.StateStore, cfg Config) *Engine {
	return &Engine{
		watcher:  watcher,
		brain:    brain,
		executor: executor,
		posters:  posters,
		store:    store,
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// TryTick runs one tick unless another is already in flight, in which case
// it reports skipped=true. This is the entrypoint for both the scheduler
// and manual triggers.
func (e *Engine) TryTick(ctx context.Context) (TickSummary, bool, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		slog.Warn("tick already in flight, skipping trigger")
		return TickSummary{}, true, nil
	}
	defer e.inFlight.Store(false)

	summary, err := e.tick(ctx)
	return summary, false, err
}

func (e *Engine) tick(ctx context.Context) (TickSummary, error) {
	summary := TickSummary{TickID: uuid.NewString()}
	log := slog.With("tick", summary.TickID[:8])

	state, err := e.store.Load(ctx)
	if err != nil {
		return summary, fmt.Errorf("agent.tick: load state: %w", err)
	}
	summary.State = state

	now := e.now()
	if state.RolloverDay(now) {
		log.Info("utc day rollover", "day", state.DayKey)
	}

	report := e.watcher.Check(ctx, state)
	summary.Eventful = report.Changed
	metrics.TicksTotal.WithLabelValues(strconv.FormatBool(report.Changed)).Inc()
	if err := e.store.Save(ctx, state); err != nil {
		return summary, fmt.Errorf("agent.tick: save snapshot: %w", err)
	}

	if !report.Changed {
		log.Debug("no wallet activity, quiet tick")
		return summary, nil
	}
	log.Info("wallet activity detected",
		"nonce", report.NonceChanged, "eth", report.EthChanged, "token", report.TokenChanged)

	bal := domain.BalanceSnapshot{
		EthWei:   state.Activity.EthWei,
		TokenRaw: state.Activity.TokenRaw,
	}

	proposal, err := e.brain.Propose(ctx, bal, report)
	if err != nil {
		log.Warn("brain unavailable, holding", "err", err)
		proposal = domain.Proposal{Action: domain.ActionHold, Rationale: "brain unavailable"}
	}
	summary.Proposal = proposal

	decision := domain.EvaluateProposal(proposal, bal, e.cfg.Guardrails, state, e.now())
	summary.Decision = decision
	metrics.DecisionsTotal.WithLabelValues(string(decision.Action)).Inc()

	if decision.BlockedReason != "" {
		log.Info("proposal blocked", "proposed", proposal.Action, "reason", decision.BlockedReason)
	}

	if decision.ShouldExecute {
		txHash, err := e.execute(ctx, decision)
		if err != nil {
			log.Error("trade execution failed", "action", decision.Action, "err", err)
		} else {
			summary.TxHash = txHash
			state.RecordTrade(e.now())
			metrics.TradesTotal.WithLabelValues(string(decision.Action)).Inc()
			if err := e.store.Save(ctx, state); err != nil {
				return summary, fmt.Errorf("agent.tick: save after trade: %w", err)
			}
			log.Info("trade executed", "action", decision.Action, "tx", txHash,
				"trades_today", state.TradesExecutedToday)

			if e.cfg.PostReceipts {
				receipt := RenderReceipt(decision, txHash, state, e.rng)
				sent, err := e.broadcast(ctx, state, receipt, domain.KindReceipt)
				if err != nil {
					return summary, fmt.Errorf("agent.tick: %w", err)
				}
				summary.PostsSent = sent
			}
		}
	}

	return summary, nil
}

// execute dispatches an approved decision to the trade executor. Sends are
// not idempotent, so there is exactly one attempt and no retry.
func (e *Engine) execute(ctx context.Context, d domain.Decision) (string, error) {
	if e.executor == nil {
		return "", fmt.Errorf("agent.execute: no trade executor configured")
	}
	switch d.Action {
	case domain.ActionBuy:
		return e.executor.ExecuteBuy(ctx, d.BuySpendWei)
	case domain.ActionSell:
		return e.executor.ExecuteSell(ctx, d.SellAmountRaw)
	}
	return "", fmt.Errorf("agent.execute: action %q is not executable", d.Action)
}

// broadcast sends text to every configured channel, tolerating per-channel
// rejections. Only state-store failures abort. News items dedup across
// restarts through the seen-news list: once any channel has carried a news
// fingerprint it is never broadcast again, even if more channels are added
// later.
func (e *Engine) broadcast(ctx context.Context, state *domain.AgentState, text string, kind domain.PostKind) (int, error) {
	fp := domain.Fingerprint(text)
	if kind == domain.KindNews && state.SeenNewsFingerprints.Contains(fp) {
		slog.Debug("news already shared, skipping broadcast", "fingerprint", fp[:12])
		return 0, nil
	}

	sent := 0
	for _, poster := range e.posters {
		result, err := poster.Post(ctx, state, text, kind)
		if err != nil {
			return sent, fmt.Errorf("broadcast: %w", err)
		}
		if result.Posted {
			sent++
		}
	}

	if kind == domain.KindNews && sent > 0 {
		state.SeenNewsFingerprints.Insert(fp)
		if err := e.store.Save(ctx, state); err != nil {
			return sent, fmt.Errorf("broadcast: save seen news: %w", err)
		}
	}
	return sent, nil
}
