package payouts

import (
	"context"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"stakedash/chain"
	"stakedash/exposure"
)

// Era data needed to split the rewards of a group of validators
type eraPayoutData struct {
	era        uint32
	validators []string
	reward     decimal.Decimal
	points     chain.RewardPoints
	prefs      []chain.ValidatorPrefs // Aligned with validators
}

// checkPendingPayouts works out, from the run's resolved exposures, which
// validators have not paid out which eras and what the account is owed.
func (p *PayoutsHandler) checkPendingPayouts(ctx context.Context, run syncRun) (UnclaimedPayouts, error) {

	network, account := run.subject.Network, run.subject.Account
	erasToCheck := run.window.Eras()

	// Validators backed by the account in each era
	eraExposures := make(map[uint32]exposure.EraExposure, len(erasToCheck))
	erasValidators := make([]string, 0)

	for _, era := range erasToCheck {
		record, ok := p.cache.GetEraExposure(network, era, account)
		if !ok {
			log.WithField("Era", era).Warn("Era exposure missing from cache")
			continue
		}
		eraExposures[era] = record
		erasValidators = append(erasValidators, lo.Keys(record)...)
	}

	uniqueValidators := lo.Uniq(erasValidators)
	sort.Strings(uniqueValidators)

	unclaimed := make(UnclaimedPayouts)
	if len(uniqueValidators) == 0 {
		return unclaimed, nil
	}

	// Validator stash => controller. Stashes no longer bonded are dropped.
	bonded, err := p.client.Bonded(ctx, uniqueValidators)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to fetch bonded controllers")
	}

	controllers := lo.Uniq(lo.Values(bonded))
	sort.Strings(controllers)

	ledgers, err := p.client.Ledgers(ctx, controllers)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to fetch staking ledgers")
	}

	// Era => validators that have not paid out that era
	unclaimedByEra := make(map[uint32][]string)

	for _, ledger := range ledgers {
		unclaimedEras := lo.Filter(exposedEras(ledger.Stash, eraExposures, erasToCheck), func(era uint32, _ int) bool {
			return run.window.Contains(era) && !ledger.HasClaimed(era)
		})

		for _, era := range unclaimedEras {
			unclaimedByEra[era] = append(unclaimedByEra[era], ledger.Stash)
		}
	}

	eras := lo.Filter(erasToCheck, func(era uint32, _ int) bool {
		return len(unclaimedByEra[era]) > 0
	})

	log.WithFields(log.Fields{
		"Validators": len(uniqueValidators), "UnclaimedEras": len(eras),
	}).Debug("Fetching era payout data")

	// Fetch every era group concurrently; all must succeed
	results := make([]eraPayoutData, len(eras))

	g, gctx := errgroup.WithContext(ctx)
	for i, era := range eras {
		i, era := i, era

		validators := unclaimedByEra[era]
		sort.Strings(validators)

		g.Go(func() error {
			data, err := p.fetchEraPayoutData(gctx, era, validators)
			if err != nil {
				return err
			}
			results[i] = data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, data := range results {

		eraPayouts := make(map[string]decimal.Decimal, len(data.validators))

		for j, validator := range data.validators {
			exposed := eraExposures[data.era][validator]

			eraPayouts[validator] = SplitReward(RewardInputs{
				EraTotalPayout:        data.reward,
				TotalRewardPoints:     data.points.Total,
				ValidatorRewardPoints: data.points.Points(validator),
				CommissionFraction:    CommissionFraction(data.prefs[j].Commission),
				AccountStaked:         exposed.Staked,
				ValidatorTotalStake:   exposed.Total,
				IsAccountTheValidator: exposed.IsValidator,
			})
		}

		p.cache.PutUnclaimedPayouts(network, data.era, account, eraPayouts, run.window.EndEra)
		unclaimed[strconv.FormatUint(uint64(data.era), 10)] = eraPayouts
	}

	return unclaimed, nil
}

// exposedEras lists the eras, of those checked, in which the account backed validator
func exposedEras(validator string, eraExposures map[uint32]exposure.EraExposure, erasToCheck []uint32) []uint32 {
	return lo.Filter(erasToCheck, func(era uint32, _ int) bool {
		_, ok := eraExposures[era][validator]
		return ok
	})
}

func (p *PayoutsHandler) fetchEraPayoutData(ctx context.Context, era uint32, validators []string) (eraPayoutData, error) {

	data := eraPayoutData{
		era:        era,
		validators: validators,
		prefs:      make([]chain.ValidatorPrefs, len(validators)),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		reward, ok, err := p.client.ErasValidatorReward(gctx, era)
		if err != nil {
			return errors.Wrapf(err, "Unable to fetch validator reward of era %d", era)
		}
		if !ok {
			log.WithField("Era", era).Warn("No validator reward recorded for era")
		}
		data.reward = reward
		return nil
	})

	g.Go(func() error {
		points, err := p.client.ErasRewardPoints(gctx, era)
		if err != nil {
			return errors.Wrapf(err, "Unable to fetch reward points of era %d", era)
		}
		data.points = points
		return nil
	})

	for j, validator := range validators {
		j, validator := j, validator
		g.Go(func() error {
			prefs, err := p.client.ErasValidatorPrefs(gctx, era, validator)
			if err != nil {
				return errors.Wrapf(err, "Unable to fetch prefs of %s for era %d", validator, era)
			}
			data.prefs[j] = prefs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eraPayoutData{}, err
	}

	return data, nil
}
