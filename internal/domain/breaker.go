package domain

import "time"

// Circuit breaker policy per social channel: three consecutive transport
// failures suspend the channel for a cooldown; an explicit rate-limit
// signal suspends without counting as a failure.
const (
	BreakerTripThreshold = 3
	BreakerCooldown      = 30 * time.Minute

	RateLimitMinBackoff = 1 * time.Minute
	RateLimitMaxBackoff = 180 * time.Minute
)

// Structured reasons surfaced by the posting gate. These are policy
// outcomes, not errors.
const (
	ReasonCircuitBreaker  = "circuit_breaker"
	ReasonMinInterval     = "min_interval"
	ReasonDuplicate       = "duplicate"
	ReasonTooSimilar      = "too_similar"
	ReasonDryRun          = "dry_run"
	ReasonTransportError  = "transport_error"
	ReasonRateLimited     = "rate_limited"
	ReasonDuplicateRemote = "duplicate_remote"
)

// BreakerOpen reports whether the channel is currently suspended.
func (c *ChannelState) BreakerOpen(now time.Time) bool {
	return c.DisabledUntilMs > 0 && now.UnixMilli() < c.DisabledUntilMs
}

// RecordFailure counts a transport failure and trips the breaker once the
// threshold is reached. The suspension deadline only ever moves forward.
func (c *ChannelState) RecordFailure(now time.Time) {
	c.FailureCount++
	if c.FailureCount >= BreakerTripThreshold {
		until := now.Add(BreakerCooldown).UnixMilli()
		if until > c.DisabledUntilMs {
			c.DisabledUntilMs = until
		}
	}
}

// RecordRateLimit suspends the channel for the platform-advised window,
// clamped to sane bounds. Not a failure: the consecutive-failure counter
// stays untouched, and an existing longer suspension is never shortened.
func (c *ChannelState) RecordRateLimit(now time.Time, retryAfter time.Duration) {
	if retryAfter < RateLimitMinBackoff {
		retryAfter = RateLimitMinBackoff
	}
	if retryAfter > RateLimitMaxBackoff {
		retryAfter = RateLimitMaxBackoff
	}
	until := now.Add(retryAfter).UnixMilli()
	if until > c.DisabledUntilMs {
		c.DisabledUntilMs = until
	}
}

// RecordSuccess closes the breaker and stamps the post for idempotency and
// interval tracking.
func (c *ChannelState) RecordSuccess(now time.Time, fingerprint string, kind PostKind) {
	c.FailureCount = 0
	c.DisabledUntilMs = 0
	c.LastPostMs = now.UnixMilli()
	c.setLastFingerprint(kind, fingerprint)
}

// RecordRemoteDuplicate handles the platform telling us identical content
// already exists: the fingerprint is recorded as posted and the failure
// streak resets, but the interval stamp is untouched since nothing new
// went out.
func (c *ChannelState) RecordRemoteDuplicate(fingerprint string, kind PostKind) {
	c.FailureCount = 0
	c.DisabledUntilMs = 0
	c.setLastFingerprint(kind, fingerprint)
}

// IntervalTooSoon reports whether a post now would violate the channel's
// minimum spacing.
func (c *ChannelState) IntervalTooSoon(now time.Time, minInterval time.Duration) bool {
	if c.LastPostMs == 0 || minInterval <= 0 {
		return false
	}
	return now.Sub(time.UnixMilli(c.LastPostMs)) < minInterval
}
