package domain

import (
	"math/big"
	"time"
)

// Bounds for the persisted LRU lists. Sized so a restart keeps enough
// history to dedup across several days of normal posting volume.
const (
	SeenNewsCap        = 200
	RecentPostsCap     = 20
	RepliedMentionsCap = 100
	TemplateHistoryCap = 10
)

// PostKind classifies an outbound social post. Receipts get their own
// idempotency bucket because their structure repeats by nature.
type PostKind string

const (
	KindReceipt PostKind = "receipt"
	KindOpinion PostKind = "opinion"
	KindNews    PostKind = "news"
	KindMeta    PostKind = "meta"
)

// FingerprintList is a bounded LRU list of strings. Inserting at capacity
// evicts the oldest entry; re-inserting an existing entry promotes it to
// newest without changing the length. Items are ordered oldest first.
type FingerprintList struct {
	Items []string
	Cap   int
}

// NewFingerprintList creates an empty list with the given capacity.
func NewFingerprintList(capacity int) FingerprintList {
	return FingerprintList{Cap: capacity}
}

// Insert adds fp as the newest entry, evicting the oldest if needed.
func (l *FingerprintList) Insert(fp string) {
	for i, existing := range l.Items {
		if existing == fp {
			l.Items = append(l.Items[:i], l.Items[i+1:]...)
			break
		}
	}
	l.Items = append(l.Items, fp)
	if l.Cap > 0 && len(l.Items) > l.Cap {
		l.Items = l.Items[len(l.Items)-l.Cap:]
	}
}

// Contains reports whether fp is present.
func (l *FingerprintList) Contains(fp string) bool {
	for _, existing := range l.Items {
		if existing == fp {
			return true
		}
	}
	return false
}

// Last returns up to n newest entries, newest last.
func (l *FingerprintList) Last(n int) []string {
	if n <= 0 || len(l.Items) == 0 {
		return nil
	}
	if n > len(l.Items) {
		n = len(l.Items)
	}
	return l.Items[len(l.Items)-n:]
}

// ChannelState is the per-social-channel breaker and idempotency record.
type ChannelState struct {
	FailureCount           int
	DisabledUntilMs        int64 // 0 = breaker closed
	LastPostMs             int64 // 0 = never posted
	LastReceiptFingerprint string
	LastPostFingerprint    string // non-receipt kinds
}

// LastFingerprint returns the stored fingerprint for the kind's bucket.
func (c *ChannelState) LastFingerprint(kind PostKind) string {
	if kind == KindReceipt {
		return c.LastReceiptFingerprint
	}
	return c.LastPostFingerprint
}

func (c *ChannelState) setLastFingerprint(kind PostKind, fp string) {
	if kind == KindReceipt {
		c.LastReceiptFingerprint = fp
	} else {
		c.LastPostFingerprint = fp
	}
}

// ActivitySnapshot is the last-seen on-chain view of the wallet. Nil fields
// mean "never observed" (or unreadable this tick, for a current snapshot).
type ActivitySnapshot struct {
	Nonce       *uint64
	EthWei      *big.Int
	TokenRaw    *big.Int
	BlockNumber *uint64
}

// AgentState is the single persisted record owned by the tick loop.
// Every guardrail check and posting attempt reads and mutates it; the
// host persists it after each mutation.
type AgentState struct {
	DayKey                string
	TradesExecutedToday   int
	LastExecutedTradeAtMs int64 // 0 = never traded

	Channels map[string]*ChannelState

	SeenNewsFingerprints   FingerprintList
	RecentPostFingerprints FingerprintList
	RecentPostTexts        FingerprintList

	RecentTemplateIndices []int

	Activity ActivitySnapshot

	LastSeenMentionID          string
	RepliedMentionFingerprints FingerprintList
}

// NewAgentState returns the first-run state: zero counters, no snapshot.
func NewAgentState() *AgentState {
	return &AgentState{
		Channels:                   make(map[string]*ChannelState),
		SeenNewsFingerprints:       NewFingerprintList(SeenNewsCap),
		RecentPostFingerprints:     NewFingerprintList(RecentPostsCap),
		RecentPostTexts:            NewFingerprintList(RecentPostsCap),
		RepliedMentionFingerprints: NewFingerprintList(RepliedMentionsCap),
	}
}

// Channel returns the state for the named channel, creating it on first use.
func (s *AgentState) Channel(name string) *ChannelState {
	if s.Channels == nil {
		s.Channels = make(map[string]*ChannelState)
	}
	ch, ok := s.Channels[name]
	if !ok {
		ch = &ChannelState{}
		s.Channels[name] = ch
	}
	return ch
}

// UTCDayKey formats t as the state's calendar-day key.
func UTCDayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// RolloverDay resets the daily trade counter when the UTC calendar day has
// changed since the last tick. It fires at most once per transition and
// never retroactively. Returns true if a reset happened.
func (s *AgentState) RolloverDay(now time.Time) bool {
	key := UTCDayKey(now)
	if s.DayKey == key {
		return false
	}
	s.DayKey = key
	s.TradesExecutedToday = 0
	return true
}

// RecordTrade bumps the daily counter and stamps the trade time.
func (s *AgentState) RecordTrade(now time.Time) {
	s.TradesExecutedToday++
	s.LastExecutedTradeAtMs = now.UnixMilli()
}

// RecordTemplateIndex appends idx to the rotation history, bounded.
func (s *AgentState) RecordTemplateIndex(idx int) {
	s.RecentTemplateIndices = append(s.RecentTemplateIndices, idx)
	if len(s.RecentTemplateIndices) > TemplateHistoryCap {
		s.RecentTemplateIndices = s.RecentTemplateIndices[len(s.RecentTemplateIndices)-TemplateHistoryCap:]
	}
}
