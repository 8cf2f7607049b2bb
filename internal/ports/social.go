package ports

import (
	"context"
	"time"
)

// PostOutcome is the transport-level result of one post attempt. Transports
// never panic or leak errors upward as exceptions: everything the posting
// orchestrator needs is in these fields.
type PostOutcome struct {
	Success           bool
	RateLimited       bool
	RetryAfter        time.Duration // advisory, only meaningful when RateLimited
	DuplicateRejected bool          // platform says identical content already exists
	Err               error         // transport detail for logging, nil on success
}

// SocialTransport posts text to one concrete platform. The orchestrator is
// agnostic to which platform backs it.
type SocialTransport interface {
	// Name returns the channel key used in AgentState (e.g. "moltbook").
	Name() string

	// Post publishes text and reports the outcome. Must respect ctx and
	// bound its own timeout.
	Post(ctx context.Context, text string) PostOutcome
}
