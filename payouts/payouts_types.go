package payouts

import (
	"github.com/shopspring/decimal"
)

type SyncState string

const (
	UNSYNCED SyncState = "unsynced"
	SYNCING  SyncState = "syncing"
	SYNCED   SyncState = "synced"
	ERRORED  SyncState = "errored"
)

// Subject is the (network, account) pair that payouts data belongs to
type Subject struct {
	Network string `json:"network"`
	Account string `json:"account"`
}

// UnclaimedPayouts maps era => validator => amount in planck
type UnclaimedPayouts map[string]map[string]decimal.Decimal

// Total sums every amount of every era
func (u UnclaimedPayouts) Total() decimal.Decimal {

	total := decimal.Zero

	for _, validators := range u {
		for _, amount := range validators {
			total = total.Add(amount)
		}
	}

	return total
}

func (u UnclaimedPayouts) clone() UnclaimedPayouts {

	if u == nil {
		return nil
	}

	c := make(UnclaimedPayouts, len(u))
	for era, validators := range u {
		v := make(map[string]decimal.Decimal, len(validators))
		for validator, amount := range validators {
			v[validator] = amount
		}
		c[era] = v
	}

	return c
}

// State is what the UI consumes
type State struct {
	Subject          Subject          `json:"subject"`
	ActiveEra        uint32           `json:"activeEra"`
	UnclaimedPayouts UnclaimedPayouts `json:"unclaimedPayouts"`
	PayoutsSynced    SyncState        `json:"payoutsSynced"`
	Error            string           `json:"error,omitempty"`
}
