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
	defaultMoltbookBase = "https://www.moltbook.com/api/v1"

	// One post per 30s, burst 1. Well under the documented platform limit;
	// the agent's own min-interval gate does the real spacing.
	moltbookRatePerSec = rate.Limit(1.0 / 30.0)

	httpTimeout = 15 * time.Second
)

// Moltbook posts to a Moltbook community via its REST API.
type Moltbook struct {
	http    *http.Client
	base    string
	apiKey  string
	submolt string
	limiter *rate.Limiter
}

// NewMoltbook creates the Moltbook transport. An empty base falls back to
// the production API.
func NewMoltbook(base, apiKey, submolt string) *Moltbook {
	if base == "" {
		base = defaultMoltbookBase
	}
	return &Moltbook{
		http:    &http.Client{Timeout: httpTimeout},
		base:    strings.TrimRight(base, "/"),
		apiKey:  apiKey,
		submolt: submolt,
		limiter: rate.NewLimiter(moltbookRatePerSec, 1),
	}
}

// Name implements ports.SocialTransport.
func (m *Moltbook) Name() string { return "moltbook" }

// Post publishes text as a new submission. All failure modes resolve to
// PostOutcome fields; nothing is thrown past this boundary.
func (m *Moltbook) Post(ctx context.Context, text string) ports.PostOutcome {
	if err := m.limiter.Wait(ctx); err != nil {
		return ports.PostOutcome{Err: fmt.Errorf("moltbook.Post: limiter: %w", err)}
	}

	payload, err := json.Marshal(map[string]string{
		"submolt": m.submolt,
		"title":   postTitle(text),
		"content": text,
	})
	if err != nil {
		return ports.PostOutcome{Err: fmt.Errorf("moltbook.Post: marshal: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.base+"/posts", bytes.NewReader(payload))
	if err != nil {
		return ports.PostOutcome{Err: fmt.Errorf("moltbook.Post: build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.http.Do(req)
	if err != nil {
		return ports.PostOutcome{Err: fmt.Errorf("moltbook.Post: %w", err)}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return ports.PostOutcome{Success: true}

	case resp.StatusCode == http.StatusTooManyRequests:
		return ports.PostOutcome{
			RateLimited: true,
			RetryAfter:  parseRetryAfter(resp.Header, body),
			Err:         fmt.Errorf("moltbook.Post: rate limited: %s", truncate(body)),
		}

	case isDuplicateBody(body):
		return ports.PostOutcome{
			DuplicateRejected: true,
			Err:               fmt.Errorf("moltbook.Post: duplicate content: %s", truncate(body)),
		}

	default:
		return ports.PostOutcome{
			Err: fmt.Errorf("moltbook.Post: status %d: %s", resp.StatusCode, truncate(body)),
		}
	}
}

// postTitle derives a submission title from the first words of the body.
func postTitle(text string) string {
	words := strings.Fields(text)
	if len(words) > 8 {
		words = words[:8]
	}
	title := strings.Join(words, " ")
	if len(title) > 80 {
		title = title[:80]
	}
	return title
}
