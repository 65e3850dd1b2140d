package payouts

import (
	"github.com/shopspring/decimal"
)

// Decimal places kept when dividing amounts
const payoutPrecision = 20

var percent = decimal.New(1, -2)

// RewardInputs are the era figures needed to split a validator's reward
type RewardInputs struct {
	EraTotalPayout        decimal.Decimal
	TotalRewardPoints     decimal.Decimal
	ValidatorRewardPoints decimal.Decimal
	CommissionFraction    decimal.Decimal // 0 - 1
	AccountStaked         decimal.Decimal
	ValidatorTotalStake   decimal.Decimal
	IsAccountTheValidator bool
}

// SplitReward returns the account's share of the validator's era reward.
//
// The validator's part of the era payout is proportional to its reward points.
// Commission is taken off the top, the rest is shared pro-rata by stake, and
// a validator also keeps the commission for itself.
func SplitReward(in RewardInputs) decimal.Decimal {

	if in.ValidatorTotalStake.IsZero() {
		return decimal.Zero
	}

	avail := decimal.Zero
	if !in.TotalRewardPoints.IsZero() {
		avail = in.EraTotalPayout.Mul(in.ValidatorRewardPoints).DivRound(in.TotalRewardPoints, payoutPrecision)
	}

	valCut := in.CommissionFraction.Mul(avail)

	payout := avail.Sub(valCut).Mul(in.AccountStaked).DivRound(in.ValidatorTotalStake, payoutPrecision)
	if in.IsAccountTheValidator {
		payout = payout.Add(valCut)
	}

	return payout
}

// CommissionFraction converts a commission percentage to a fraction
func CommissionFraction(commissionPct decimal.Decimal) decimal.Decimal {
	return commissionPct.Mul(percent)
}
