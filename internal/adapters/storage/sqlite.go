package storage

// sqlite.go: persistent AgentState store.
//
// The state is one logical record, so the layout is deliberately flat:
//   - `agent_state`: single row (id=1) with the scalar fields.
//   - `channel_state`: one row per social channel.
//   - `fingerprints`: the bounded LRU lists, one row per entry, keyed by
//     bucket name with an explicit position to preserve LRU order.
//
// Save rewrites everything inside one transaction; the record is a few KB
// at most, so a full rewrite is cheaper than diffing and keeps Load/Save
// atomic from the agent's point of view.

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/moltlabs/moltagent/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS agent_state (
    id                   INTEGER PRIMARY KEY CHECK (id = 1),
    day_key              TEXT    NOT NULL DEFAULT '',
    trades_today         INTEGER NOT NULL DEFAULT 0,
    last_trade_ms        INTEGER NOT NULL DEFAULT 0,
    last_seen_nonce      INTEGER,
    last_seen_eth_wei    TEXT,
    last_seen_token_raw  TEXT,
    last_seen_block      INTEGER,
    last_seen_mention_id TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS channel_state (
    channel           TEXT PRIMARY KEY,
    failure_count     INTEGER NOT NULL DEFAULT 0,
    disabled_until_ms INTEGER NOT NULL DEFAULT 0,
    last_post_ms      INTEGER NOT NULL DEFAULT 0,
    last_receipt_fp   TEXT    NOT NULL DEFAULT '',
    last_post_fp      TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS fingerprints (
    bucket   TEXT    NOT NULL,
    position INTEGER NOT NULL,
    value    TEXT    NOT NULL,
    PRIMARY KEY (bucket, position)
);
`

// Bucket names for the fingerprints table.
const (
	bucketNews            = "seen_news"
	bucketRecentFps       = "recent_post_fps"
	bucketRecentTexts     = "recent_post_texts"
	bucketRepliedMentions = "replied_mentions"
	bucketTemplateIdx     = "template_indices"
)

// SQLiteStore implements ports.StateStore on a local SQLite file
// (pure Go driver, no CGo).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the
// schema. Use ":memory:" for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load reads the persisted state, returning a fresh zero state on first run.
func (s *SQLiteStore) Load(ctx context.Context) (*domain.AgentState, error) {
	state := domain.NewAgentState()

	row := s.db.QueryRowContext(ctx, `
		SELECT day_key, trades_today, last_trade_ms,
		       last_seen_nonce, last_seen_eth_wei, last_seen_token_raw,
		       last_seen_block, last_seen_mention_id
		FROM agent_state WHERE id = 1`)

	var nonce, block sql.NullInt64
	var ethWei, tokenRaw sql.NullString
	err := row.Scan(&state.DayKey, &state.TradesExecutedToday, &state.LastExecutedTradeAtMs,
		&nonce, &ethWei, &tokenRaw, &block, &state.LastSeenMentionID)
	if err == sql.ErrNoRows {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage.Load: scan agent_state: %w", err)
	}

	if nonce.Valid {
		n := uint64(nonce.Int64)
		state.Activity.Nonce = &n
	}
	if block.Valid {
		b := uint64(block.Int64)
		state.Activity.BlockNumber = &b
	}
	if ethWei.Valid {
		if v, ok := new(big.Int).SetString(ethWei.String, 10); ok {
			state.Activity.EthWei = v
		}
	}
	if tokenRaw.Valid {
		if v, ok := new(big.Int).SetString(tokenRaw.String, 10); ok {
			state.Activity.TokenRaw = v
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT channel, failure_count, disabled_until_ms, last_post_ms, last_receipt_fp, last_post_fp
		FROM channel_state`)
	if err != nil {
		return nil, fmt.Errorf("storage.Load: query channels: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		ch := &domain.ChannelState{}
		if err := rows.Scan(&name, &ch.FailureCount, &ch.DisabledUntilMs,
			&ch.LastPostMs, &ch.LastReceiptFingerprint, &ch.LastPostFingerprint); err != nil {
			return nil, fmt.Errorf("storage.Load: scan channel: %w", err)
		}
		state.Channels[name] = ch
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.Load: channels: %w", err)
	}

	buckets := map[string]*domain.FingerprintList{
		bucketNews:            &state.SeenNewsFingerprints,
		bucketRecentFps:       &state.RecentPostFingerprints,
		bucketRecentTexts:     &state.RecentPostTexts,
		bucketRepliedMentions: &state.RepliedMentionFingerprints,
	}
	for bucket, list := range buckets {
		values, err := s.loadBucket(ctx, bucket)
		if err != nil {
			return nil, err
		}
		list.Items = values
	}

	idxValues, err := s.loadBucket(ctx, bucketTemplateIdx)
	if err != nil {
		return nil, err
	}
	for _, v := range idxValues {
		if idx, err := strconv.Atoi(v); err == nil {
			state.RecentTemplateIndices = append(state.RecentTemplateIndices, idx)
		}
	}

	return state, nil
}

func (s *SQLiteStore) loadBucket(ctx context.Context, bucket string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT value FROM fingerprints WHERE bucket = ? ORDER BY position ASC`, bucket)
	if err != nil {
		return nil, fmt.Errorf("storage.Load: query bucket %q: %w", bucket, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("storage.Load: scan bucket %q: %w", bucket, err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Save rewrites the full state in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, state *domain.AgentState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.Save: begin: %w", err)
	}
	defer tx.Rollback()

	var nonce, block any
	if state.Activity.Nonce != nil {
		nonce = int64(*state.Activity.Nonce)
	}
	if state.Activity.BlockNumber != nil {
		block = int64(*state.Activity.BlockNumber)
	}
	var ethWei, tokenRaw any
	if state.Activity.EthWei != nil {
		ethWei = state.Activity.EthWei.String()
	}
	if state.Activity.TokenRaw != nil {
		tokenRaw = state.Activity.TokenRaw.String()
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO agent_state
			(id, day_key, trades_today, last_trade_ms,
			 last_seen_nonce, last_seen_eth_wei, last_seen_token_raw,
			 last_seen_block, last_seen_mention_id)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			day_key = excluded.day_key,
			trades_today = excluded.trades_today,
			last_trade_ms = excluded.last_trade_ms,
			last_seen_nonce = excluded.last_seen_nonce,
			last_seen_eth_wei = excluded.last_seen_eth_wei,
			last_seen_token_raw = excluded.last_seen_token_raw,
			last_seen_block = excluded.last_seen_block,
			last_seen_mention_id = excluded.last_seen_mention_id`,
		state.DayKey, state.TradesExecutedToday, state.LastExecutedTradeAtMs,
		nonce, ethWei, tokenRaw, block, state.LastSeenMentionID); err != nil {
		return fmt.Errorf("storage.Save: upsert agent_state: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM channel_state`); err != nil {
		return fmt.Errorf("storage.Save: clear channels: %w", err)
	}
	for name, ch := range state.Channels {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO channel_state
				(channel, failure_count, disabled_until_ms, last_post_ms, last_receipt_fp, last_post_fp)
			VALUES (?, ?, ?, ?, ?, ?)`,
			name, ch.FailureCount, ch.DisabledUntilMs, ch.LastPostMs,
			ch.LastReceiptFingerprint, ch.LastPostFingerprint); err != nil {
			return fmt.Errorf("storage.Save: insert channel %q: %w", name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM fingerprints`); err != nil {
		return fmt.Errorf("storage.Save: clear fingerprints: %w", err)
	}
	buckets := map[string][]string{
		bucketNews:            state.SeenNewsFingerprints.Items,
		bucketRecentFps:       state.RecentPostFingerprints.Items,
		bucketRecentTexts:     state.RecentPostTexts.Items,
		bucketRepliedMentions: state.RepliedMentionFingerprints.Items,
	}
	idxItems := make([]string, 0, len(state.RecentTemplateIndices))
	for _, idx := range state.RecentTemplateIndices {
		idxItems = append(idxItems, strconv.Itoa(idx))
	}
	buckets[bucketTemplateIdx] = idxItems

	for bucket, items := range buckets {
		for pos, v := range items {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO fingerprints (bucket, position, value) VALUES (?, ?, ?)`,
				bucket, pos, v); err != nil {
				return fmt.Errorf("storage.Save: insert bucket %q: %w", bucket, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.Save: commit: %w", err)
	}
	return nil
}

// Close closes the database cleanly.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
