package storage_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moltlabs/moltagent/internal/adapters/storage"
	"github.com/moltlabs/moltagent/internal/domain"
)

func TestSQLiteStore_FirstRunIsZeroState(t *testing.T) {
	db, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer db.Close()

	state, err := db.Load(context.Background())
	require.NoError(t, err)

	assert.Empty(t, state.DayKey)
	assert.Zero(t, state.TradesExecutedToday)
	assert.Nil(t, state.Activity.Nonce)
	assert.Empty(t, state.Channels)
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	db, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	state := domain.NewAgentState()
	state.DayKey = "2025-06-01"
	state.TradesExecutedToday = 2
	state.LastExecutedTradeAtMs = 1748779200000
	state.LastSeenMentionID = "18842"

	nonce := uint64(41)
	block := uint64(22001930)
	state.Activity = domain.ActivitySnapshot{
		Nonce:       &nonce,
		EthWei:      big.NewInt(0).Mul(big.NewInt(15), big.NewInt(1e17)),
		TokenRaw:    big.NewInt(123456789),
		BlockNumber: &block,
	}

	ch := state.Channel("moltbook")
	ch.FailureCount = 2
	ch.DisabledUntilMs = 1748782800000
	ch.LastPostMs = 1748779000000
	ch.LastReceiptFingerprint = "aaa"
	ch.LastPostFingerprint = "bbb"

	state.SeenNewsFingerprints.Insert("news-1")
	state.SeenNewsFingerprints.Insert("news-2")
	state.RecentPostTexts.Insert("first post text")
	state.RecentPostTexts.Insert("second post text")
	state.RecentPostFingerprints.Insert("fp-1")
	state.RepliedMentionFingerprints.Insert("mention-1")
	state.RecordTemplateIndex(3)
	state.RecordTemplateIndex(1)

	require.NoError(t, db.Save(ctx, state))

	loaded, err := db.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, "2025-06-01", loaded.DayKey)
	assert.Equal(t, 2, loaded.TradesExecutedToday)
	assert.EqualValues(t, 1748779200000, loaded.LastExecutedTradeAtMs)
	assert.Equal(t, "18842", loaded.LastSeenMentionID)

	require.NotNil(t, loaded.Activity.Nonce)
	assert.Equal(t, uint64(41), *loaded.Activity.Nonce)
	assert.Equal(t, "1500000000000000000", loaded.Activity.EthWei.String())
	assert.Equal(t, "123456789", loaded.Activity.TokenRaw.String())
	assert.Equal(t, uint64(22001930), *loaded.Activity.BlockNumber)

	loadedCh := loaded.Channel("moltbook")
	assert.Equal(t, 2, loadedCh.FailureCount)
	assert.EqualValues(t, 1748782800000, loadedCh.DisabledUntilMs)
	assert.Equal(t, "aaa", loadedCh.LastReceiptFingerprint)
	assert.Equal(t, "bbb", loadedCh.LastPostFingerprint)

	assert.Equal(t, []string{"news-1", "news-2"}, loaded.SeenNewsFingerprints.Items)
	assert.Equal(t, []string{"first post text", "second post text"}, loaded.RecentPostTexts.Items)
	assert.Equal(t, []string{"fp-1"}, loaded.RecentPostFingerprints.Items)
	assert.Equal(t, []string{"mention-1"}, loaded.RepliedMentionFingerprints.Items)
	assert.Equal(t, []int{3, 1}, loaded.RecentTemplateIndices)
}

func TestSQLiteStore_SaveOverwrites(t *testing.T) {
	db, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	state := domain.NewAgentState()
	state.DayKey = "2025-06-01"
	state.Channel("x_api").FailureCount = 3
	state.SeenNewsFingerprints.Insert("old")
	require.NoError(t, db.Save(ctx, state))

	state.DayKey = "2025-06-02"
	state.Channel("x_api").FailureCount = 0
	state.SeenNewsFingerprints.Insert("new")
	require.NoError(t, db.Save(ctx, state))

	loaded, err := db.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-02", loaded.DayKey)
	assert.Equal(t, 0, loaded.Channel("x_api").FailureCount)
	assert.Equal(t, []string{"old", "new"}, loaded.SeenNewsFingerprints.Items)
}

// LRU order survives persistence, so cross-restart dedup keeps working.
func TestSQLiteStore_PreservesLRUOrder(t *testing.T) {
	db, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	state := domain.NewAgentState()
	state.SeenNewsFingerprints.Insert("a")
	state.SeenNewsFingerprints.Insert("b")
	state.SeenNewsFingerprints.Insert("a") // promote
	require.NoError(t, db.Save(ctx, state))

	loaded, err := db.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, loaded.SeenNewsFingerprints.Items)
}
