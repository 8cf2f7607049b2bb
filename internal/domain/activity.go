package domain

import "math/big"

// ActivityThresholds sets the minimum balance movement that counts as
// "something happened". Nil thresholds mean any movement counts.
type ActivityThresholds struct {
	MinEthDeltaWei   *big.Int
	MinTokenDeltaRaw *big.Int
}

// ActivityReport is the outcome of diffing the prior snapshot against the
// current chain view. Current always carries the freshest known values so
// the next tick compares against them even when nothing triggered.
type ActivityReport struct {
	Changed      bool
	NonceChanged bool
	EthChanged   bool
	TokenChanged bool
	Current      ActivitySnapshot
}

// DiffActivity compares prior and current wallet snapshots. A nil field in
// current means the read failed this tick: that dimension reports no
// change and keeps the prior value in the returned snapshot. A nil field
// in prior means no baseline yet: the current value is recorded without
// flagging a change.
func DiffActivity(prior, current ActivitySnapshot, th ActivityThresholds) ActivityReport {
	r := ActivityReport{Current: prior}

	if current.Nonce != nil {
		if prior.Nonce != nil && *current.Nonce != *prior.Nonce {
			r.NonceChanged = true
		}
		r.Current.Nonce = current.Nonce
	}

	if current.EthWei != nil {
		if prior.EthWei != nil && deltaAtLeast(prior.EthWei, current.EthWei, th.MinEthDeltaWei) {
			r.EthChanged = true
		}
		r.Current.EthWei = current.EthWei
	}

	if current.TokenRaw != nil {
		if prior.TokenRaw != nil && deltaAtLeast(prior.TokenRaw, current.TokenRaw, th.MinTokenDeltaRaw) {
			r.TokenChanged = true
		}
		r.Current.TokenRaw = current.TokenRaw
	}

	if current.BlockNumber != nil {
		r.Current.BlockNumber = current.BlockNumber
	}

	r.Changed = r.NonceChanged || r.EthChanged || r.TokenChanged
	return r
}

func deltaAtLeast(prior, current, min *big.Int) bool {
	delta := new(big.Int).Sub(current, prior)
	delta.Abs(delta)
	if delta.Sign() == 0 {
		return false
	}
	if min == nil || min.Sign() <= 0 {
		return true
	}
	return delta.Cmp(min) >= 0
}
