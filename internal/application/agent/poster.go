package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/moltlabs/moltagent/internal/domain"
	"github.com/moltlabs/moltagent/internal/metrics"
	"github.com/moltlabs/moltagent/internal/ports"
)

// PostingConfig bounds outbound posting independently of the trading
// guardrails. DryRun here gates only social sends; it is deliberately a
// separate flag from the trading dry run.
type PostingConfig struct {
	MinInterval         time.Duration
	SimilarityThreshold float64
	SimilarityLookback  int
	DryRun              bool
}

// PostResult is what the orchestrator reports for every attempt. Reason is
// one of the domain.Reason* constants or empty on a fresh successful post.
type PostResult struct {
	Posted bool
	Reason string
}

// Poster runs the gate sequence for one channel and commits the outcome
// back into AgentState. It never lets a transport failure escape: every
// path resolves to a PostResult.
type Poster struct {
	transport ports.SocialTransport
	store     ports.StateStore
	cfg       PostingConfig
	now       func() time.Time
}

// NewPoster wires a posting orchestrator for one transport.
func NewPoster(transport ports.SocialTransport, store ports.StateStore, cfg PostingConfig) *Poster {
	if cfg.SimilarityLookback <= 0 {
		cfg.SimilarityLookback = 5
	}
	return &Poster{transport: transport, store: store, cfg: cfg, now: time.Now}
}

// Post attempts to publish text of the given kind. Gate order: circuit
// breaker, minimum interval, idempotency fingerprint, then content
// similarity (receipts are exempt; their structure repeats by nature).
// State mutations are persisted before returning.
func (p *Poster) Post(ctx context.Context, state *domain.AgentState, text string, kind domain.PostKind) (PostResult, error) {
	channel := p.transport.Name()
	ch := state.Channel(channel)
	now := p.now()
	fp := domain.Fingerprint(text)

	if ch.BreakerOpen(now) {
		return p.rejected(channel, domain.ReasonCircuitBreaker,
			"until", time.UnixMilli(ch.DisabledUntilMs)), nil
	}
	if ch.IntervalTooSoon(now, p.cfg.MinInterval) {
		return p.rejected(channel, domain.ReasonMinInterval,
			"last_post", time.UnixMilli(ch.LastPostMs)), nil
	}
	if fp == ch.LastFingerprint(kind) && fp != "" {
		return p.rejected(channel, domain.ReasonDuplicate, "fingerprint", fp[:12]), nil
	}
	if kind != domain.KindReceipt {
		recent := state.RecentPostTexts.Last(p.cfg.SimilarityLookback)
		if similar, score := domain.TooSimilar(recent, text, p.cfg.SimilarityThreshold); similar {
			return p.rejected(channel, domain.ReasonTooSimilar, "score", score), nil
		}
	}

	if p.cfg.DryRun {
		slog.Info("social dry run, skipping transport", "channel", channel, "kind", kind)
		return PostResult{Posted: false, Reason: domain.ReasonDryRun}, nil
	}

	outcome := p.transport.Post(ctx, text)
	now = p.now()

	switch {
	case outcome.Success:
		ch.RecordSuccess(now, fp, kind)
		state.RecentPostFingerprints.Insert(fp)
		state.RecentPostTexts.Insert(text)
		metrics.PostsTotal.WithLabelValues(channel, "posted").Inc()
		metrics.SetBreakerOpen(channel, false)
		if err := p.store.Save(ctx, state); err != nil {
			return PostResult{}, err
		}
		slog.Info("posted", "channel", channel, "kind", kind, "chars", len(text))
		return PostResult{Posted: true}, nil

	case outcome.DuplicateRejected:
		// Platform already has this content. Not a failure and not a new
		// post: record the fingerprint so we stop retrying it.
		ch.RecordRemoteDuplicate(fp, kind)
		metrics.PostsTotal.WithLabelValues(channel, domain.ReasonDuplicateRemote).Inc()
		if err := p.store.Save(ctx, state); err != nil {
			return PostResult{}, err
		}
		slog.Info("platform reports duplicate, fingerprint recorded", "channel", channel)
		return PostResult{Posted: false, Reason: domain.ReasonDuplicateRemote}, nil

	case outcome.RateLimited:
		ch.RecordRateLimit(now, outcome.RetryAfter)
		metrics.PostsTotal.WithLabelValues(channel, domain.ReasonRateLimited).Inc()
		metrics.SetBreakerOpen(channel, true)
		if err := p.store.Save(ctx, state); err != nil {
			return PostResult{}, err
		}
		slog.Warn("rate limited", "channel", channel,
			"retry_after", outcome.RetryAfter, "err", outcome.Err)
		return PostResult{Posted: false, Reason: domain.ReasonRateLimited}, nil

	default:
		ch.RecordFailure(now)
		metrics.PostsTotal.WithLabelValues(channel, domain.ReasonTransportError).Inc()
		metrics.SetBreakerOpen(channel, ch.BreakerOpen(now))
		if err := p.store.Save(ctx, state); err != nil {
			return PostResult{}, err
		}
		slog.Warn("post failed", "channel", channel,
			"failures", ch.FailureCount, "err", outcome.Err)
		return PostResult{Posted: false, Reason: domain.ReasonTransportError}, nil
	}
}

func (p *Poster) rejected(channel, reason string, args ...any) PostResult {
	fields := append([]any{"channel", channel, "reason", reason}, args...)
	slog.Debug("post rejected", fields...)
	metrics.PostsTotal.WithLabelValues(channel, reason).Inc()
	return PostResult{Posted: false, Reason: reason}
}
