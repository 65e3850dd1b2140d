package chain

import (
	"context"
	"math/big"

	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/centrifuge/go-substrate-rpc-client/v4/xxhash"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"stakedash/util"
)

const (
	stakingPallet = "Staking"

	// Perbill is parts per billion; one percent is 10^7
	perbillPerPercent = 10000000
)

// SCALE layouts of the Staking pallet storage items that are read

type activeEraInfo struct {
	Index types.U32
	Start types.OptionU64
}

type individualExposure struct {
	Who   [32]byte
	Value types.UCompact
}

type exposure struct {
	Total  types.UCompact
	Own    types.UCompact
	Others []individualExposure
}

type unlockChunk struct {
	Value types.UCompact
	Era   types.UCompact
}

type stakingLedger struct {
	Stash          [32]byte
	Total          types.UCompact
	Active         types.UCompact
	Unlocking      []unlockChunk
	ClaimedRewards []types.U32
}

type individualPoints struct {
	Who    [32]byte
	Points types.U32
}

type eraRewardPoints struct {
	Total      types.U32
	Individual []individualPoints
}

type validatorPrefs struct {
	Commission types.UCompact
	Blocked    types.Bool
}

// SubstrateClient reads staking storage from a Substrate node over RPC
type SubstrateClient struct {
	url        string
	ss58Format uint16
	api        *gsrpc.SubstrateAPI
	meta       *types.Metadata
}

func NewSubstrateClient(url string, ss58Format uint16) (*SubstrateClient, error) {

	api, err := gsrpc.NewSubstrateAPI(url)
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to connect to %s", url)
	}

	meta, err := api.RPC.State.GetMetadataLatest()
	if err != nil {
		return nil, errors.Wrap(err, "Unable to fetch runtime metadata")
	}

	log.WithField("Endpoint", url).Info("Connected to RPC")

	return &SubstrateClient{
		url:        url,
		ss58Format: ss58Format,
		api:        api,
		meta:       meta,
	}, nil
}

func (s *SubstrateClient) URL() string {
	return s.url
}

func (s *SubstrateClient) ActiveEra(ctx context.Context) (uint32, error) {

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	key, err := types.CreateStorageKey(s.meta, stakingPallet, "ActiveEra")
	if err != nil {
		return 0, errors.Wrap(err, "Unable to create ActiveEra key")
	}

	var info activeEraInfo
	ok, err := s.api.RPC.State.GetStorageLatest(key, &info)
	if err != nil {
		return 0, errors.Wrap(err, "Unable to query ActiveEra")
	}

	// Not yet known
	if !ok {
		return 0, nil
	}

	return uint32(info.Index), nil
}

func (s *SubstrateClient) IsNominating(ctx context.Context, account string) (bool, error) {

	if err := ctx.Err(); err != nil {
		return false, err
	}

	accountID, err := s.accountID(account)
	if err != nil {
		return false, err
	}

	key, err := types.CreateStorageKey(s.meta, stakingPallet, "Nominators", accountID)
	if err != nil {
		return false, errors.Wrap(err, "Unable to create Nominators key")
	}

	raw, err := s.api.RPC.State.GetStorageRawLatest(key)
	if err != nil {
		return false, errors.Wrap(err, "Unable to query Nominators")
	}

	return raw != nil && len(*raw) > 0, nil
}

// EraStakers returns the exposure of every validator elected in the era
func (s *SubstrateClient) EraStakers(ctx context.Context, era uint32) ([]Exposure, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix, err := EraStakersPrefix(era)
	if err != nil {
		return nil, err
	}

	keys, err := s.api.RPC.State.GetKeysLatest(prefix)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to query ErasStakers keys")
	}

	if len(keys) == 0 {
		return nil, nil
	}

	changeSets, err := s.api.RPC.State.QueryStorageAtLatest(keys)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to query ErasStakers")
	}

	exposures := make([]Exposure, 0, len(keys))

	for _, changeSet := range changeSets {
		for _, change := range changeSet.Changes {

			if !change.HasStorageData {
				continue
			}

			// The validator's account id ends the Twox64Concat key
			if len(change.StorageKey) < len(prefix)+util.PublicKeyLength {
				continue
			}
			validatorID := change.StorageKey[len(change.StorageKey)-util.PublicKeyLength:]

			var e exposure
			if err := codec.Decode(change.StorageData, &e); err != nil {
				return nil, errors.Wrap(err, "Unable to decode exposure")
			}

			validator, err := util.SS58Encode(validatorID, s.ss58Format)
			if err != nil {
				return nil, err
			}

			converted := Exposure{
				Validator: validator,
				Total:     compactToDecimal(e.Total),
				Own:       compactToDecimal(e.Own),
				Others:    make([]IndividualExposure, 0, len(e.Others)),
			}

			for _, o := range e.Others {
				who, err := util.SS58Encode(o.Who[:], s.ss58Format)
				if err != nil {
					return nil, err
				}

				converted.Others = append(converted.Others, IndividualExposure{
					Who:   who,
					Value: compactToDecimal(o.Value),
				})
			}

			exposures = append(exposures, converted)
		}
	}

	return exposures, nil
}

// Bonded returns stash => controller; stashes that are not bonded are absent
func (s *SubstrateClient) Bonded(ctx context.Context, stashes []string) (map[string]string, error) {

	controllers := make(map[string]string, len(stashes))

	err := s.queryMulti(ctx, "Bonded", stashes, func(stash string, data types.StorageDataRaw) error {

		var controllerID [32]byte
		if err := codec.Decode(data, &controllerID); err != nil {
			return errors.Wrap(err, "Unable to decode controller")
		}

		controller, err := util.SS58Encode(controllerID[:], s.ss58Format)
		if err != nil {
			return err
		}
		controllers[stash] = controller

		return nil
	})

	return controllers, err
}

// Ledgers returns controller => ledger; controllers without a ledger are absent
func (s *SubstrateClient) Ledgers(ctx context.Context, controllers []string) (map[string]Ledger, error) {

	ledgers := make(map[string]Ledger, len(controllers))

	err := s.queryMulti(ctx, "Ledger", controllers, func(controller string, data types.StorageDataRaw) error {

		var l stakingLedger
		if err := codec.Decode(data, &l); err != nil {
			return errors.Wrap(err, "Unable to decode ledger")
		}

		stash, err := util.SS58Encode(l.Stash[:], s.ss58Format)
		if err != nil {
			return err
		}

		ledger := Ledger{
			Stash:          stash,
			ClaimedRewards: make([]uint32, len(l.ClaimedRewards)),
		}
		for i, e := range l.ClaimedRewards {
			ledger.ClaimedRewards[i] = uint32(e)
		}
		ledgers[controller] = ledger

		return nil
	})

	return ledgers, err
}

func (s *SubstrateClient) ErasValidatorReward(ctx context.Context, era uint32) (decimal.Decimal, bool, error) {

	if err := ctx.Err(); err != nil {
		return decimal.Zero, false, err
	}

	eraBytes, err := codec.Encode(types.NewU32(era))
	if err != nil {
		return decimal.Zero, false, err
	}

	key, err := types.CreateStorageKey(s.meta, stakingPallet, "ErasValidatorReward", eraBytes)
	if err != nil {
		return decimal.Zero, false, errors.Wrap(err, "Unable to create ErasValidatorReward key")
	}

	var reward types.U128
	ok, err := s.api.RPC.State.GetStorageLatest(key, &reward)
	if err != nil {
		return decimal.Zero, false, errors.Wrap(err, "Unable to query ErasValidatorReward")
	}

	if !ok || reward.Int == nil {
		return decimal.Zero, false, nil
	}

	return decimal.NewFromBigInt(reward.Int, 0), true, nil
}

func (s *SubstrateClient) ErasRewardPoints(ctx context.Context, era uint32) (RewardPoints, error) {

	points := RewardPoints{
		Total:      decimal.Zero,
		Individual: make(map[string]decimal.Decimal),
	}

	if err := ctx.Err(); err != nil {
		return points, err
	}

	eraBytes, err := codec.Encode(types.NewU32(era))
	if err != nil {
		return points, err
	}

	key, err := types.CreateStorageKey(s.meta, stakingPallet, "ErasRewardPoints", eraBytes)
	if err != nil {
		return points, errors.Wrap(err, "Unable to create ErasRewardPoints key")
	}

	var rp eraRewardPoints
	ok, err := s.api.RPC.State.GetStorageLatest(key, &rp)
	if err != nil {
		return points, errors.Wrap(err, "Unable to query ErasRewardPoints")
	}

	if !ok {
		return points, nil
	}

	points.Total = decimal.NewFromInt(int64(rp.Total))
	for _, p := range rp.Individual {
		validator, err := util.SS58Encode(p.Who[:], s.ss58Format)
		if err != nil {
			return points, err
		}
		points.Individual[validator] = decimal.NewFromInt(int64(p.Points))
	}

	return points, nil
}

func (s *SubstrateClient) ErasValidatorPrefs(ctx context.Context, era uint32, validator string) (ValidatorPrefs, error) {

	prefs := ValidatorPrefs{Commission: decimal.Zero}

	if err := ctx.Err(); err != nil {
		return prefs, err
	}

	eraBytes, err := codec.Encode(types.NewU32(era))
	if err != nil {
		return prefs, err
	}

	validatorID, err := s.accountID(validator)
	if err != nil {
		return prefs, err
	}

	key, err := types.CreateStorageKey(s.meta, stakingPallet, "ErasValidatorPrefs", eraBytes, validatorID)
	if err != nil {
		return prefs, errors.Wrap(err, "Unable to create ErasValidatorPrefs key")
	}

	var vp validatorPrefs
	ok, err := s.api.RPC.State.GetStorageLatest(key, &vp)
	if err != nil {
		return prefs, errors.Wrap(err, "Unable to query ErasValidatorPrefs")
	}

	if !ok {
		return prefs, nil
	}

	prefs.Commission = PerbillToPercent(compactToDecimal(vp.Commission))
	prefs.Blocked = bool(vp.Blocked)

	return prefs, nil
}

// queryMulti fetches a map storage item for several accounts in one request,
// calling fn for every account that has a value
func (s *SubstrateClient) queryMulti(ctx context.Context, method string, accounts []string, fn func(string, types.StorageDataRaw) error) error {

	if err := ctx.Err(); err != nil {
		return err
	}

	if len(accounts) == 0 {
		return nil
	}

	keys := make([]types.StorageKey, 0, len(accounts))
	keyAccounts := make(map[string]string, len(accounts))

	for _, account := range accounts {
		accountID, err := s.accountID(account)
		if err != nil {
			return err
		}

		key, err := types.CreateStorageKey(s.meta, stakingPallet, method, accountID)
		if err != nil {
			return errors.Wrapf(err, "Unable to create %s key", method)
		}

		keys = append(keys, key)
		keyAccounts[key.Hex()] = account
	}

	changeSets, err := s.api.RPC.State.QueryStorageAtLatest(keys)
	if err != nil {
		return errors.Wrapf(err, "Unable to query %s", method)
	}

	for _, changeSet := range changeSets {
		for _, change := range changeSet.Changes {
			if !change.HasStorageData || len(change.StorageData) == 0 {
				continue
			}

			account, ok := keyAccounts[change.StorageKey.Hex()]
			if !ok {
				continue
			}

			if err := fn(account, change.StorageData); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *SubstrateClient) accountID(address string) ([]byte, error) {

	format, pubKey, err := util.SS58Decode(address)
	if err != nil {
		return nil, errors.Wrapf(err, "Invalid address %s", address)
	}

	if format != s.ss58Format {
		return nil, errors.Errorf("Address %s is not in network format %d", address, s.ss58Format)
	}

	return pubKey, nil
}

// EraStakersPrefix is the storage key prefix of all ErasStakers entries of the era:
// twox128(pallet) ++ twox128(item) ++ twox64concat(era)
func EraStakersPrefix(era uint32) (types.StorageKey, error) {

	eraBytes, err := codec.Encode(types.NewU32(era))
	if err != nil {
		return nil, errors.Wrap(err, "Unable to encode era")
	}

	prefix := xxhash.New128([]byte(stakingPallet)).Sum(nil)
	prefix = append(prefix, xxhash.New128([]byte("ErasStakers")).Sum(nil)...)
	prefix = append(prefix, xxhash.New64(eraBytes).Sum(nil)...)
	prefix = append(prefix, eraBytes...)

	return types.NewStorageKey(prefix), nil
}

// PerbillToPercent converts a perbill value to a percentage
func PerbillToPercent(perbill decimal.Decimal) decimal.Decimal {
	return perbill.Div(decimal.NewFromInt(perbillPerPercent))
}

func compactToDecimal(c types.UCompact) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).Set((*big.Int)(&c)), 0)
}
