package payouts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"stakedash/chain"
	"stakedash/exposure"
	"stakedash/metrics"
	"stakedash/notifications"
	"stakedash/util"
)

// ChainClient is the part of the chain client used for payouts
type ChainClient interface {
	Connected() bool
	EraStakers(ctx context.Context, era uint32) ([]chain.Exposure, error)
	Bonded(ctx context.Context, stashes []string) (map[string]string, error)
	Ledgers(ctx context.Context, controllers []string) (map[string]chain.Ledger, error)
	ErasValidatorReward(ctx context.Context, era uint32) (decimal.Decimal, bool, error)
	ErasRewardPoints(ctx context.Context, era uint32) (chain.RewardPoints, error)
	ErasValidatorPrefs(ctx context.Context, era uint32, validator string) (chain.ValidatorPrefs, error)
}

type ExposureResolver interface {
	Submit(ctx context.Context, req exposure.Request) error
	Responses() <-chan exposure.Response
}

type Notifier interface {
	SendNotification(message string, category notifications.NotificationCategory)
}

type PayoutsHandlerArgs struct {
	Client         ChainClient
	Cache          ExposureCache
	Resolver       ExposureResolver
	Store          *Store
	History        SyncHistory            // Optional
	Notifier       Notifier               // Optional
	Constants      *util.NetworkConstants // Optional, for notification amounts
	MaxEras        uint32
	ResyncOnNewEra bool
}

// PayoutsHandler reconciles the unclaimed payouts of the store's subject.
// All run state is owned by the Run loop; fetches happen on short-lived
// goroutines whose results come back to the loop as events.
type PayoutsHandler struct {
	client         ChainClient
	cache          ExposureCache
	resolver       ExposureResolver
	store          *Store
	history        SyncHistory
	notifier       Notifier
	constants      *util.NetworkConstants
	maxEras        uint32
	resyncOnNewEra bool

	events chan interface{}
	wg     *sync.WaitGroup

	// Owned by Run
	activeEra         uint32
	nominating        bool
	nominatingAccount string
	run               *syncRun
}

// A run is identified by the store generation it started at
type syncRun struct {
	subject    Subject
	generation uint64
	activeEra  uint32
	window     EraWindow
	awaiting   uint32 // Era waiting on the resolver, 0 if none
}

type triggerEvent struct{}

type fetchFailedEvent struct {
	generation uint64
	err        error
}

type checkedEvent struct {
	run       syncRun
	unclaimed UnclaimedPayouts
	err       error
}

func NewPayoutsHandler(args PayoutsHandlerArgs) *PayoutsHandler {

	maxEras := args.MaxEras
	if maxEras == 0 {
		maxEras = util.MaxSupportedPayoutEras
	}

	return &PayoutsHandler{
		client:         args.Client,
		cache:          args.Cache,
		resolver:       args.Resolver,
		store:          args.Store,
		history:        args.History,
		notifier:       args.Notifier,
		constants:      args.Constants,
		maxEras:        maxEras,
		resyncOnNewEra: args.ResyncOnNewEra,
		events:         make(chan interface{}, 32),
	}
}

func (p *PayoutsHandler) Store() *Store {
	return p.store
}

func (p *PayoutsHandler) State() State {
	return p.store.State()
}

func (p *PayoutsHandler) EraPayouts(era string) (map[string]decimal.Decimal, bool) {
	return p.store.EraPayouts(era)
}

// SetAccount switches the active account, discarding the current table
func (p *PayoutsHandler) SetAccount(ctx context.Context, account string) {

	if p.store.SetSubject(p.store.Subject().Network, account) {
		log.WithField("Account", account).Info("Active account changed")
	}

	p.post(ctx, triggerEvent{})
}

// Resync discards a synced or errored table and starts over. Returns false
// while a run is in progress.
func (p *PayoutsHandler) Resync(ctx context.Context) bool {

	if p.store.SyncState() == SYNCING {
		return false
	}

	p.store.Reset()
	p.post(ctx, triggerEvent{})

	return true
}

func (p *PayoutsHandler) post(ctx context.Context, ev interface{}) {
	select {
	case p.events <- ev:
	case <-ctx.Done():
	}
}

// Run processes era updates, resolver responses and fetch results until ctx is done
func (p *PayoutsHandler) Run(ctx context.Context, wg *sync.WaitGroup, eraUpdates <-chan chain.EraUpdate) {

	// Decrement waitGroup on exit
	defer wg.Done()

	p.wg = wg

	for {
		select {
		case <-ctx.Done():
			log.Info("Payouts handler stopped")
			return

		case update, ok := <-eraUpdates:
			if !ok {
				eraUpdates = nil
				continue
			}
			p.handleEraUpdate(ctx, update)

		case ev := <-p.events:
			p.handleEvent(ctx, ev)

		case resp := <-p.resolver.Responses():
			p.handleExposureResponse(ctx, resp)
		}
	}
}

func (p *PayoutsHandler) handleEraUpdate(ctx context.Context, update chain.EraUpdate) {

	prevEra := p.activeEra

	p.activeEra = update.ActiveEra
	p.nominating = update.Nominating
	p.nominatingAccount = update.Account

	p.store.setActiveEra(update.ActiveEra)
	metrics.SetActiveEra(update.ActiveEra)

	if p.resyncOnNewEra && prevEra != 0 && update.ActiveEra > prevEra && p.store.SyncState() == SYNCED {
		log.WithFields(log.Fields{
			"PrevEra": prevEra, "ActiveEra": update.ActiveEra,
		}).Info("New era; resyncing payouts")
		p.store.Reset()
	}

	p.maybeStart(ctx)
}

func (p *PayoutsHandler) handleEvent(ctx context.Context, ev interface{}) {

	switch ev := ev.(type) {
	case triggerEvent:
		p.maybeStart(ctx)

	case fetchFailedEvent:
		p.failRun(ev.generation, ev.err)

	case checkedEvent:
		if ev.err != nil {
			p.failRun(ev.run.generation, ev.err)
			return
		}

		if !p.store.complete(ev.run.generation, ev.unclaimed) {
			log.WithField("Account", ev.run.subject.Account).Debug("Dropping payouts of superseded run")
			metrics.StaleDropped()
			return
		}

		p.run = nil
		p.finishRun(ev.run, ev.unclaimed)

	default:
		log.WithField("Event", fmt.Sprintf("%T", ev)).Warn("Unknown payouts event")
	}
}

// maybeStart begins a run if there is an account to check and the chain is ready
func (p *PayoutsHandler) maybeStart(ctx context.Context) {

	if p.client == nil || !p.client.Connected() || p.activeEra == 0 {
		return
	}

	subject := p.store.Subject()
	if subject.Account == "" || !p.nominating || p.nominatingAccount != subject.Account {
		return
	}

	generation, ok := p.store.beginSync(subject)
	if !ok {
		return
	}

	p.run = &syncRun{
		subject:    subject,
		generation: generation,
		activeEra:  p.activeEra,
		window:     NewEraWindow(p.activeEra, p.maxEras),
	}

	log.WithFields(log.Fields{
		"Account": subject.Account, "StartEra": p.run.window.StartEra, "EndEra": p.run.window.EndEra,
	}).Info("Checking unclaimed payouts")

	p.resolveFrom(ctx, p.run, p.run.window.StartEra)
}

// resolveFrom walks the window down from era, skipping cached eras, until it
// reaches one that needs the resolver. Once all are resolved, checking starts.
func (p *PayoutsHandler) resolveFrom(ctx context.Context, run *syncRun, era uint32) {

	for {
		if !p.cache.HasEraExposure(run.subject.Network, era, run.subject.Account) {
			run.awaiting = era

			p.wg.Add(1)
			go p.fetchEraStakers(ctx, *run, era)

			return
		}

		metrics.EraResolved("cache")

		if era <= run.window.EndEra {
			break
		}
		era--
	}

	p.startChecking(ctx, run)
}

func (p *PayoutsHandler) fetchEraStakers(ctx context.Context, run syncRun, era uint32) {

	defer p.wg.Done()

	exposures, err := p.client.EraStakers(ctx, era)
	if err != nil {
		log.WithError(err).WithField("Era", era).Error("Unable to fetch era stakers")
		p.post(ctx, fetchFailedEvent{generation: run.generation, err: errors.Wrapf(err, "Unable to fetch stakers of era %d", era)})
		return
	}

	err = p.resolver.Submit(ctx, exposure.Request{
		Task:        exposure.TaskProcessEraForExposure,
		Era:         era,
		Who:         run.subject.Account,
		NetworkName: run.subject.Network,
		Exposures:   exposures,
	})
	if err != nil {
		log.WithError(err).WithField("Era", era).Debug("Exposure request not submitted")
	}
}

func (p *PayoutsHandler) handleExposureResponse(ctx context.Context, resp exposure.Response) {

	subject := p.store.Subject()
	run := p.run

	if resp.NetworkName != subject.Network || resp.Who != subject.Account ||
		run == nil || run.subject != subject || run.awaiting != resp.Era || !p.store.isCurrent(run.generation) {

		log.WithFields(log.Fields{
			"Era": resp.Era, "Who": resp.Who,
		}).Debug("Dropping stale exposure response")
		metrics.StaleDropped()

		return
	}

	if resp.Err != nil {
		p.failRun(run.generation, resp.Err)
		return
	}

	if resp.Task != exposure.TaskProcessEraForExposure {
		return
	}

	p.cache.PutEraExposure(subject.Network, resp.Era, subject.Account, resp.ExposedValidators, run.window.EndEra)
	metrics.EraResolved("resolver")

	log.WithFields(log.Fields{
		"Era": resp.Era, "Validators": len(resp.ExposedValidators),
	}).Debug("Era exposure resolved")

	if resp.Era <= run.window.EndEra {
		p.startChecking(ctx, run)
		return
	}

	p.resolveFrom(ctx, run, resp.Era-1)
}

func (p *PayoutsHandler) startChecking(ctx context.Context, run *syncRun) {

	run.awaiting = 0

	p.wg.Add(1)
	go func(r syncRun) {
		defer p.wg.Done()

		unclaimed, err := p.checkPendingPayouts(ctx, r)
		p.post(ctx, checkedEvent{run: r, unclaimed: unclaimed, err: err})
	}(*run)
}

func (p *PayoutsHandler) failRun(generation uint64, err error) {

	if !p.store.fail(generation, err) {
		log.WithError(err).Debug("Ignoring failure of superseded run")
		metrics.StaleDropped()
		return
	}

	p.run = nil
	metrics.RunFinished(string(ERRORED))

	log.WithError(err).Error("Unable to sync unclaimed payouts")

	if p.notifier != nil {
		p.notifier.SendNotification(fmt.Sprintf("Unable to sync unclaimed payouts: %s", err.Error()), notifications.SYNC_FAIL)
	}
}

func (p *PayoutsHandler) finishRun(run syncRun, unclaimed UnclaimedPayouts) {

	total := unclaimed.Total()

	units := total
	if p.constants != nil {
		units = p.constants.PlanckToUnit(total)
	}
	unitsFloat, _ := units.Float64()

	metrics.RunFinished(string(SYNCED))
	metrics.SetUnclaimed(unitsFloat, len(unclaimed))

	log.WithFields(log.Fields{
		"Account": run.subject.Account, "Eras": len(unclaimed), "Total": total.String(),
	}).Info("Unclaimed payouts synced")

	if p.history != nil {
		record := SyncRecord{
			ActiveEra: run.activeEra,
			Window:    run.window,
			Total:     total,
			NumEras:   len(unclaimed),
			Timestamp: time.Now().Unix(),
		}
		if err := SaveSyncRecord(p.history, run.subject, record); err != nil {
			log.WithError(err).Error("Unable to record payouts sync")
		}
	}

	if p.notifier != nil && !total.IsZero() {
		p.notifier.SendNotification(p.payoutsMessage(total, len(unclaimed)), notifications.PAYOUTS)
	}
}

func (p *PayoutsHandler) payoutsMessage(total decimal.Decimal, eras int) string {

	if p.constants == nil {
		return fmt.Sprintf("Unclaimed payouts: %s planck across %d eras", total.String(), eras)
	}

	return fmt.Sprintf("Unclaimed payouts: %s %s across %d eras",
		p.constants.PlanckToUnit(total).Round(4).String(), p.constants.Unit, eras)
}
