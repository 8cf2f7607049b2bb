package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/moltlabs/moltagent/internal/domain"
)

const llmTimeout = 20 * time.Second

const systemPrompt = `You are the trading brain of an on-chain agent. ` +
	`Reply with exactly one line: BUY, SELL, or HOLD, a pipe character, ` +
	`then a one-sentence rationale. Example: HOLD|nothing moved enough to act on.`

// LLM proposes actions through an OpenAI-compatible chat completions
// endpoint. Any failure (transport, status, unparsable reply) degrades
// to a HOLD proposal with the error attached, never a crash.
type LLM struct {
	http     *http.Client
	base     string
	apiKey   string
	model    string
	fallback *Heuristic
}

// NewLLM creates the LLM proposer. fallback handles outages; pass nil to
// hold instead.
func NewLLM(base, apiKey, model string, fallback *Heuristic) *LLM {
	return &LLM{
		http:     &http.Client{Timeout: llmTimeout},
		base:     strings.TrimRight(base, "/"),
		apiKey:   apiKey,
		model:    model,
		fallback: fallback,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Propose implements ports.Brain.
func (l *LLM) Propose(ctx context.Context, bal domain.BalanceSnapshot, activity domain.ActivityReport) (domain.Proposal, error) {
	proposal, err := l.ask(ctx, bal, activity)
	if err == nil {
		return proposal, nil
	}
	if l.fallback != nil {
		return l.fallback.Propose(ctx, bal, activity)
	}
	return domain.Proposal{Action: domain.ActionHold, Rationale: "brain unavailable"}, err
}

func (l *LLM) ask(ctx context.Context, bal domain.BalanceSnapshot, activity domain.ActivityReport) (domain.Proposal, error) {
	user := fmt.Sprintf("eth_wei=%s token_raw=%s nonce_changed=%t eth_changed=%t token_changed=%t",
		bigOrZero(bal.EthWei), bigOrZero(bal.TokenRaw),
		activity.NonceChanged, activity.EthChanged, activity.TokenChanged)

	payload, err := json.Marshal(chatRequest{
		Model: l.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("brain.ask: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.base+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("brain.ask: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.http.Do(req)
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("brain.ask: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return domain.Proposal{}, fmt.Errorf("brain.ask: status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.Proposal{}, fmt.Errorf("brain.ask: decode: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return domain.Proposal{}, fmt.Errorf("brain.ask: empty choices")
	}

	return parseReply(parsed.Choices[0].Message.Content)
}

// parseReply extracts "ACTION|rationale" from the model output, tolerating
// surrounding noise but rejecting anything without a clear action.
func parseReply(reply string) (domain.Proposal, error) {
	line := strings.TrimSpace(reply)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	actionPart, rationale, _ := strings.Cut(line, "|")
	action := domain.Action(strings.ToUpper(strings.TrimSpace(actionPart)))

	switch action {
	case domain.ActionBuy, domain.ActionSell, domain.ActionHold:
		rationale = strings.TrimSpace(rationale)
		if rationale == "" {
			rationale = "model gave no rationale"
		}
		return domain.Proposal{Action: action, Rationale: rationale}, nil
	}
	return domain.Proposal{}, fmt.Errorf("brain.parseReply: unrecognized action in %q", line)
}

func bigOrZero(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
