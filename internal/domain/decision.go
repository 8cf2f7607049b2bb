package domain

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Action is a proposed or approved trading action.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Proposal is what the brain suggests for this tick. It carries no
// authority: the guardrails decide whether anything executes.
type Proposal struct {
	Action    Action
	Rationale string
}

// BalanceSnapshot is the live wallet view the guardrails size trades from.
// Amounts are integers in the smallest on-chain unit.
type BalanceSnapshot struct {
	EthWei   *big.Int
	TokenRaw *big.Int
}

// Guardrails is the trading policy, validated at startup by the config
// layer. MaxSpendEthPerTrade stays a human-readable decimal string; it is
// parsed once per evaluation and a bad value degrades to "never trade".
type Guardrails struct {
	TradingEnabled      bool
	KillSwitch          bool
	DryRun              bool
	RouterConfigured    bool
	DailyTradeCap       int
	MinIntervalMinutes  int
	MaxSpendEthPerTrade string
	SellFractionBps     int
}

// Decision is the guardrail verdict for one proposal. BlockedReason is
// empty only when the proposal passed every rule (including proposal-level
// HOLD pass-through). BuySpendWei/SellAmountRaw are set only for the
// approved action.
type Decision struct {
	Action        Action
	Rationale     string
	BlockedReason string
	BuySpendWei   *big.Int
	SellAmountRaw *big.Int
	ShouldExecute bool
}

var weiPerEth = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ParseEthToWei converts a decimal ETH string ("0.5") to wei without
// floating point. Malformed, negative, or empty input yields zero; the
// caller treats that as a non-positive cap, never as an error.
func ParseEthToWei(s string) *big.Int {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") {
		return new(big.Int)
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 18 {
		frac = frac[:18]
	}
	frac += strings.Repeat("0", 18-len(frac))

	wholeInt, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return new(big.Int)
	}
	fracInt, ok := new(big.Int).SetString(frac, 10)
	if !ok {
		return new(big.Int)
	}
	wei := new(big.Int).Mul(wholeInt, weiPerEth)
	return wei.Add(wei, fracInt)
}

func hold(p Proposal, reason string) Decision {
	return Decision{Action: ActionHold, Rationale: p.Rationale, BlockedReason: reason}
}

// EvaluateProposal applies the trading guardrails to a proposal. Pure:
// reads the state snapshot, mutates nothing, and never returns an error;
// every bad input degrades to a blocked HOLD. The first matching rule wins.
func EvaluateProposal(p Proposal, bal BalanceSnapshot, g Guardrails, st *AgentState, now time.Time) Decision {
	if !g.TradingEnabled {
		return hold(p, "trading disabled")
	}
	if g.KillSwitch {
		return hold(p, "kill switch engaged")
	}
	if g.DryRun {
		return hold(p, "dry run")
	}
	if !g.RouterConfigured {
		return hold(p, "router not configured")
	}
	if g.DailyTradeCap <= 0 {
		return hold(p, "daily trade cap is zero")
	}
	if st.TradesExecutedToday >= g.DailyTradeCap {
		return hold(p, fmt.Sprintf("daily trade cap reached (%d/%d)", st.TradesExecutedToday, g.DailyTradeCap))
	}
	if st.LastExecutedTradeAtMs > 0 {
		elapsed := now.Sub(time.UnixMilli(st.LastExecutedTradeAtMs)).Minutes()
		if elapsed < float64(g.MinIntervalMinutes) {
			return hold(p, fmt.Sprintf("min interval not met (%.1f/%d min)", elapsed, g.MinIntervalMinutes))
		}
	}

	switch p.Action {
	case ActionHold:
		return Decision{Action: ActionHold, Rationale: p.Rationale}

	case ActionBuy:
		capWei := ParseEthToWei(g.MaxSpendEthPerTrade)
		if capWei.Sign() <= 0 {
			return hold(p, "spend cap not positive")
		}
		ethWei := bal.EthWei
		if ethWei == nil {
			ethWei = new(big.Int)
		}
		spend := new(big.Int).Set(capWei)
		if ethWei.Cmp(capWei) < 0 {
			spend.Set(ethWei)
		}
		if spend.Sign() <= 0 {
			return hold(p, "insufficient ETH balance")
		}
		return Decision{
			Action:        ActionBuy,
			Rationale:     p.Rationale,
			BuySpendWei:   spend,
			ShouldExecute: true,
		}

	case ActionSell:
		tokenRaw := bal.TokenRaw
		if tokenRaw == nil {
			tokenRaw = new(big.Int)
		}
		sell := new(big.Int).Mul(tokenRaw, big.NewInt(int64(g.SellFractionBps)))
		sell.Div(sell, big.NewInt(10000))
		if sell.Sign() <= 0 {
			return hold(p, "no token to sell or sell fraction too small")
		}
		return Decision{
			Action:        ActionSell,
			Rationale:     p.Rationale,
			SellAmountRaw: sell,
			ShouldExecute: true,
		}
	}

	return hold(p, fmt.Sprintf("unknown action %q", p.Action))
}
