package domain

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openGuardrails() Guardrails {
	return Guardrails{
		TradingEnabled:      true,
		KillSwitch:          false,
		DryRun:              false,
		RouterConfigured:    true,
		DailyTradeCap:       5,
		MinIntervalMinutes:  30,
		MaxSpendEthPerTrade: "0.5",
		SellFractionBps:     500,
	}
}

func eth(s string) *big.Int { return ParseEthToWei(s) }

var noon = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestEvaluate_TradingDisabled(t *testing.T) {
	g := openGuardrails()
	g.TradingEnabled = false

	d := EvaluateProposal(Proposal{Action: ActionBuy}, BalanceSnapshot{EthWei: eth("2")}, g, NewAgentState(), noon)

	assert.Equal(t, ActionHold, d.Action)
	assert.False(t, d.ShouldExecute)
	assert.Equal(t, "trading disabled", d.BlockedReason)
}

func TestEvaluate_KillSwitch(t *testing.T) {
	g := openGuardrails()
	g.KillSwitch = true

	d := EvaluateProposal(Proposal{Action: ActionSell}, BalanceSnapshot{TokenRaw: big.NewInt(1e6)}, g, NewAgentState(), noon)

	assert.Equal(t, ActionHold, d.Action)
	assert.False(t, d.ShouldExecute)
	assert.Equal(t, "kill switch engaged", d.BlockedReason)
}

func TestEvaluate_DryRun(t *testing.T) {
	g := openGuardrails()
	g.DryRun = true

	d := EvaluateProposal(Proposal{Action: ActionBuy}, BalanceSnapshot{EthWei: eth("2")}, g, NewAgentState(), noon)

	assert.Equal(t, ActionHold, d.Action)
	assert.False(t, d.ShouldExecute)
	assert.Equal(t, "dry run", d.BlockedReason)
}

// Hard stops win regardless of balances or proposal.
func TestEvaluate_HardStopsAlwaysHold(t *testing.T) {
	rich := BalanceSnapshot{EthWei: eth("1000"), TokenRaw: eth("1000")}
	for _, action := range []Action{ActionBuy, ActionSell, ActionHold} {
		for _, mutate := range []func(*Guardrails){
			func(g *Guardrails) { g.TradingEnabled = false },
			func(g *Guardrails) { g.KillSwitch = true },
			func(g *Guardrails) { g.DryRun = true },
		} {
			g := openGuardrails()
			mutate(&g)
			d := EvaluateProposal(Proposal{Action: action}, rich, g, NewAgentState(), noon)
			assert.Equal(t, ActionHold, d.Action)
			assert.False(t, d.ShouldExecute)
		}
	}
}

func TestEvaluate_RouterNotConfigured(t *testing.T) {
	g := openGuardrails()
	g.RouterConfigured = false

	d := EvaluateProposal(Proposal{Action: ActionBuy}, BalanceSnapshot{EthWei: eth("2")}, g, NewAgentState(), noon)

	assert.Equal(t, "router not configured", d.BlockedReason)
}

func TestEvaluate_DailyCapZero(t *testing.T) {
	g := openGuardrails()
	g.DailyTradeCap = 0

	d := EvaluateProposal(Proposal{Action: ActionBuy}, BalanceSnapshot{EthWei: eth("2")}, g, NewAgentState(), noon)

	assert.Equal(t, ActionHold, d.Action)
	assert.NotEmpty(t, d.BlockedReason)
}

func TestEvaluate_DailyCapReached(t *testing.T) {
	g := openGuardrails()
	st := NewAgentState()
	st.TradesExecutedToday = 5

	d := EvaluateProposal(Proposal{Action: ActionBuy}, BalanceSnapshot{EthWei: eth("2")}, g, st, noon)

	assert.Equal(t, ActionHold, d.Action)
	assert.Contains(t, d.BlockedReason, "5/5")
}

func TestEvaluate_MinIntervalNotMet(t *testing.T) {
	g := openGuardrails()
	st := NewAgentState()
	st.LastExecutedTradeAtMs = noon.Add(-10 * time.Minute).UnixMilli()

	d := EvaluateProposal(Proposal{Action: ActionBuy}, BalanceSnapshot{EthWei: eth("2")}, g, st, noon)

	assert.Equal(t, ActionHold, d.Action)
	assert.Contains(t, d.BlockedReason, "min interval")
}

func TestEvaluate_MinIntervalElapsed(t *testing.T) {
	g := openGuardrails()
	st := NewAgentState()
	st.LastExecutedTradeAtMs = noon.Add(-31 * time.Minute).UnixMilli()

	d := EvaluateProposal(Proposal{Action: ActionBuy}, BalanceSnapshot{EthWei: eth("2")}, g, st, noon)

	assert.True(t, d.ShouldExecute)
}

func TestEvaluate_HoldPassesThrough(t *testing.T) {
	d := EvaluateProposal(Proposal{Action: ActionHold, Rationale: "calm"}, BalanceSnapshot{}, openGuardrails(), NewAgentState(), noon)

	assert.Equal(t, ActionHold, d.Action)
	assert.Equal(t, "calm", d.Rationale)
	assert.Empty(t, d.BlockedReason)
	assert.False(t, d.ShouldExecute)
}

// Scenario: 2 ETH balance, 0.5 ETH cap → spend exactly 0.5 ETH.
func TestEvaluate_BuyCappedBySpendLimit(t *testing.T) {
	d := EvaluateProposal(Proposal{Action: ActionBuy}, BalanceSnapshot{EthWei: eth("2")}, openGuardrails(), NewAgentState(), noon)

	require.True(t, d.ShouldExecute)
	assert.Equal(t, ActionBuy, d.Action)
	assert.Equal(t, eth("0.5"), d.BuySpendWei)
	assert.Empty(t, d.BlockedReason)
}

func TestEvaluate_BuyCappedByBalance(t *testing.T) {
	d := EvaluateProposal(Proposal{Action: ActionBuy}, BalanceSnapshot{EthWei: eth("0.2")}, openGuardrails(), NewAgentState(), noon)

	require.True(t, d.ShouldExecute)
	assert.Equal(t, eth("0.2"), d.BuySpendWei)
}

// Spend never exceeds min(balance, cap) and is always positive.
func TestEvaluate_BuySpendBound(t *testing.T) {
	balances := []string{"0.0001", "0.5", "1", "7.25"}
	for _, b := range balances {
		d := EvaluateProposal(Proposal{Action: ActionBuy}, BalanceSnapshot{EthWei: eth(b)}, openGuardrails(), NewAgentState(), noon)
		require.True(t, d.ShouldExecute, "balance %s", b)
		assert.True(t, d.BuySpendWei.Sign() > 0)
		assert.True(t, d.BuySpendWei.Cmp(eth(b)) <= 0)
		assert.True(t, d.BuySpendWei.Cmp(eth("0.5")) <= 0)
	}
}

func TestEvaluate_BuyInsufficientEth(t *testing.T) {
	d := EvaluateProposal(Proposal{Action: ActionBuy}, BalanceSnapshot{EthWei: big.NewInt(0)}, openGuardrails(), NewAgentState(), noon)

	assert.Equal(t, ActionHold, d.Action)
	assert.Equal(t, "insufficient ETH balance", d.BlockedReason)
}

func TestEvaluate_BuyUnparsableCap(t *testing.T) {
	g := openGuardrails()
	g.MaxSpendEthPerTrade = "a lot"

	d := EvaluateProposal(Proposal{Action: ActionBuy}, BalanceSnapshot{EthWei: eth("2")}, g, NewAgentState(), noon)

	assert.Equal(t, ActionHold, d.Action)
	assert.Equal(t, "spend cap not positive", d.BlockedReason)
}

// Scenario: 1000 tokens, 500 bps → sell exactly 50.
func TestEvaluate_SellFraction(t *testing.T) {
	d := EvaluateProposal(Proposal{Action: ActionSell}, BalanceSnapshot{TokenRaw: big.NewInt(1000)}, openGuardrails(), NewAgentState(), noon)

	require.True(t, d.ShouldExecute)
	assert.Equal(t, ActionSell, d.Action)
	assert.Equal(t, big.NewInt(50), d.SellAmountRaw)
}

func TestEvaluate_SellRoundsDown(t *testing.T) {
	// 1999 * 500 / 10000 = 99.95 → 99
	d := EvaluateProposal(Proposal{Action: ActionSell}, BalanceSnapshot{TokenRaw: big.NewInt(1999)}, openGuardrails(), NewAgentState(), noon)

	require.True(t, d.ShouldExecute)
	assert.Equal(t, big.NewInt(99), d.SellAmountRaw)
}

func TestEvaluate_SellNothingToSell(t *testing.T) {
	d := EvaluateProposal(Proposal{Action: ActionSell}, BalanceSnapshot{TokenRaw: big.NewInt(10)}, openGuardrails(), NewAgentState(), noon)

	// 10 * 500 / 10000 = 0
	assert.Equal(t, ActionHold, d.Action)
	assert.False(t, d.ShouldExecute)
}

func TestEvaluate_NilBalancesAreZero(t *testing.T) {
	buy := EvaluateProposal(Proposal{Action: ActionBuy}, BalanceSnapshot{}, openGuardrails(), NewAgentState(), noon)
	sell := EvaluateProposal(Proposal{Action: ActionSell}, BalanceSnapshot{}, openGuardrails(), NewAgentState(), noon)

	assert.False(t, buy.ShouldExecute)
	assert.False(t, sell.ShouldExecute)
}

// --- ParseEthToWei ---

func TestParseEthToWei(t *testing.T) {
	assert.Equal(t, big.NewInt(5e17).String(), ParseEthToWei("0.5").String())
	assert.Equal(t, "1000000000000000000", ParseEthToWei("1").String())
	assert.Equal(t, "1250000000000000000", ParseEthToWei("1.25").String())
	assert.Equal(t, "1", ParseEthToWei("0.000000000000000001").String())
}

func TestParseEthToWei_Garbage(t *testing.T) {
	for _, in := range []string{"", "abc", "-1", "1.2.3", "1,5", "0x10"} {
		assert.Equal(t, 0, ParseEthToWei(in).Sign(), "input %q", in)
	}
}

func TestParseEthToWei_TruncatesExtraPrecision(t *testing.T) {
	// More than 18 fractional digits: excess truncated, no rounding up.
	assert.Equal(t, "1", ParseEthToWei("0.0000000000000000019").String())
}
