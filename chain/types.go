package chain

import (
	"context"

	"github.com/shopspring/decimal"
)

// IndividualExposure is one nominator's stake behind a validator
type IndividualExposure struct {
	Who   string          `json:"who"`
	Value decimal.Decimal `json:"value"`
}

// Exposure is a validator's stake snapshot for an era
type Exposure struct {
	Validator string               `json:"validator"`
	Total     decimal.Decimal      `json:"total"`
	Own       decimal.Decimal      `json:"own"`
	Others    []IndividualExposure `json:"others"`
}

// Ledger is the part of a stash's staking ledger needed for payouts
type Ledger struct {
	Stash          string   `json:"stash"`
	ClaimedRewards []uint32 `json:"claimedRewards"`
}

// HasClaimed reports whether rewards of the era were already claimed
func (l Ledger) HasClaimed(era uint32) bool {
	for _, e := range l.ClaimedRewards {
		if e == era {
			return true
		}
	}
	return false
}

type RewardPoints struct {
	Total      decimal.Decimal            `json:"total"`
	Individual map[string]decimal.Decimal `json:"individual"`
}

// Points returns the validator's points; zero if it earned none in the era
func (r RewardPoints) Points(validator string) decimal.Decimal {
	if p, ok := r.Individual[validator]; ok {
		return p
	}
	return decimal.Zero
}

type ValidatorPrefs struct {
	Commission decimal.Decimal `json:"commission"` // Percent, 0 - 100
	Blocked    bool            `json:"blocked"`
}

// Endpoint is everything queried from a chain node
type Endpoint interface {
	URL() string
	ActiveEra(ctx context.Context) (uint32, error)
	IsNominating(ctx context.Context, account string) (bool, error)
	EraStakers(ctx context.Context, era uint32) ([]Exposure, error)
	Bonded(ctx context.Context, stashes []string) (map[string]string, error)
	Ledgers(ctx context.Context, controllers []string) (map[string]Ledger, error)
	ErasValidatorReward(ctx context.Context, era uint32) (decimal.Decimal, bool, error)
	ErasRewardPoints(ctx context.Context, era uint32) (RewardPoints, error)
	ErasValidatorPrefs(ctx context.Context, era uint32, validator string) (ValidatorPrefs, error)
}
