package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/moltlabs/moltagent/internal/ports"
)

const (
	defaultXBase = "https://api.x.com/2"

	// Free-tier write budget is tiny; keep the limiter well inside it.
	xRatePerSec = rate.Limit(1.0 / 60.0)

	maxTweetLen = 280
)

// X posts tweets through the X API v2.
type X struct {
	http    *http.Client
	base    string
	bearer  string
	limiter *rate.Limiter
}

// NewX creates the X transport. An empty base falls back to production.
func NewX(base, bearerToken string) *X {
	if base == "" {
		base = defaultXBase
	}
	return &X{
		http:    &http.Client{Timeout: httpTimeout},
		base:    strings.TrimRight(base, "/"),
		bearer:  bearerToken,
		limiter: rate.NewLimiter(xRatePerSec, 1),
	}
}

// Name implements ports.SocialTransport.
func (x *X) Name() string { return "x_api" }

// Post publishes text as a tweet, truncated to the platform limit.
func (x *X) Post(ctx context.Context, text string) ports.PostOutcome {
	if err := x.limiter.Wait(ctx); err != nil {
		return ports.PostOutcome{Err: fmt.Errorf("x.Post: limiter: %w", err)}
	}

	text = truncateTweet(text)

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return ports.PostOutcome{Err: fmt.Errorf("x.Post: marshal: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.base+"/tweets", bytes.NewReader(payload))
	if err != nil {
		return ports.PostOutcome{Err: fmt.Errorf("x.Post: build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+x.bearer)

	resp, err := x.http.Do(req)
	if err != nil {
		return ports.PostOutcome{Err: fmt.Errorf("x.Post: %w", err)}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return ports.PostOutcome{Success: true}

	case resp.StatusCode == http.StatusTooManyRequests:
		return ports.PostOutcome{
			RateLimited: true,
			RetryAfter:  xRetryAfter(resp.Header),
			Err:         fmt.Errorf("x.Post: rate limited: %s", truncate(body)),
		}

	case resp.StatusCode == http.StatusForbidden && isDuplicateBody(body):
		// X rejects byte-identical tweets with a 403.
		return ports.PostOutcome{
			DuplicateRejected: true,
			Err:               fmt.Errorf("x.Post: duplicate content: %s", truncate(body)),
		}

	default:
		return ports.PostOutcome{
			Err: fmt.Errorf("x.Post: status %d: %s", resp.StatusCode, truncate(body)),
		}
	}
}

// truncateTweet caps text at the platform limit. X counts characters, not
// bytes, so the cut lands on a rune boundary and never splits a multi-byte
// rune from the rendered rationale.
func truncateTweet(text string) string {
	runes := []rune(text)
	if len(runes) <= maxTweetLen {
		return text
	}
	return string(runes[:maxTweetLen-1]) + "…"
}

// xRetryAfter converts the x-rate-limit-reset epoch header into a wait
// duration. Falls back to the generic Retry-After handling.
func xRetryAfter(h http.Header) time.Duration {
	if reset := h.Get("x-rate-limit-reset"); reset != "" {
		var epoch int64
		if _, err := fmt.Sscanf(reset, "%d", &epoch); err == nil {
			if wait := time.Until(time.Unix(epoch, 0)); wait > 0 {
				return wait
			}
		}
	}
	return parseRetryAfter(h, nil)
}
