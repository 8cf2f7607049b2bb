// Package social implements ports.SocialTransport for the platforms the
// agent posts to. Transports map platform quirks (429s, duplicate
// rejections, advisory retry windows) onto the neutral PostOutcome shape;
// the posting orchestrator never sees raw HTTP.
package social

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// parseRetryAfter reads the standard Retry-After header (seconds form) or
// a retryAfter field hinted in a JSON error body. Zero means "no advice";
// the breaker clamps to its own bounds either way.
func parseRetryAfter(h http.Header, body []byte) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	// Some platforms put "retryAfter": <seconds> in the error payload.
	s := string(body)
	if i := strings.Index(s, `"retryAfter"`); i >= 0 {
		rest := strings.TrimLeft(s[i+len(`"retryAfter"`):], ": ")
		end := 0
		for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
			end++
		}
		if secs, err := strconv.Atoi(rest[:end]); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

// isDuplicateBody sniffs platform error payloads for duplicate-content
// rejections.
func isDuplicateBody(body []byte) bool {
	s := strings.ToLower(string(body))
	return strings.Contains(s, "duplicate")
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
