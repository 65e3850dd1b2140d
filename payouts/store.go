package payouts

import (
	"sync"

	"github.com/shopspring/decimal"

	"stakedash/metrics"
)

// Store holds the unclaimed payouts of the active subject. Every reader and
// writer goes through it, so reads never observe a table from a previous subject.
type Store struct {
	subject    Subject
	activeEra  uint32
	unclaimed  UnclaimedPayouts
	synced     SyncState
	errMsg     string
	generation uint64 // bumped on every reset; identifies the data owner
	lock       sync.RWMutex
}

func NewStore(network string) *Store {
	metrics.SetSyncState(string(UNSYNCED))
	return &Store{
		subject: Subject{Network: network},
		synced:  UNSYNCED,
	}
}

// SetSubject switches the active (network, account). A change discards the
// table and returns the store to unsynced. Returns true if the subject changed.
func (s *Store) SetSubject(network, account string) bool {

	s.lock.Lock()
	defer s.lock.Unlock()

	next := Subject{Network: network, Account: account}
	if next == s.subject {
		return false
	}

	s.subject = next
	s.resetLocked()

	return true
}

// Reset discards the table and returns the store to unsynced
func (s *Store) Reset() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.resetLocked()
}

func (s *Store) resetLocked() {
	s.unclaimed = nil
	s.synced = UNSYNCED
	s.errMsg = ""
	s.generation++

	metrics.SetSyncState(string(UNSYNCED))
	metrics.SetUnclaimed(0, 0)
}

func (s *Store) Subject() Subject {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.subject
}

func (s *Store) SyncState() SyncState {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.synced
}

// State returns a copy of the current state
func (s *Store) State() State {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return State{
		Subject:          s.subject,
		ActiveEra:        s.activeEra,
		UnclaimedPayouts: s.unclaimed.clone(),
		PayoutsSynced:    s.synced,
		Error:            s.errMsg,
	}
}

// EraPayouts returns the validator => amount table of one era
func (s *Store) EraPayouts(era string) (map[string]decimal.Decimal, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	payouts, ok := s.unclaimed[era]
	if !ok {
		return nil, false
	}

	c := make(map[string]decimal.Decimal, len(payouts))
	for validator, amount := range payouts {
		c[validator] = amount
	}

	return c, true
}

// TotalUnclaimed sums every unclaimed amount, in planck
func (s *Store) TotalUnclaimed() decimal.Decimal {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.unclaimed.Total()
}

func (s *Store) setActiveEra(era uint32) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.activeEra = era
}

// beginSync moves unsynced to syncing if subject is still the active one.
// Returns the generation that owns the new run.
func (s *Store) beginSync(subject Subject) (uint64, bool) {

	s.lock.Lock()
	defer s.lock.Unlock()

	if subject.Account == "" || s.subject != subject || s.synced != UNSYNCED {
		return 0, false
	}

	s.synced = SYNCING
	metrics.SetSyncState(string(SYNCING))

	return s.generation, true
}

func (s *Store) isCurrent(generation uint64) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.generation == generation && s.synced == SYNCING
}

// complete merges a finished run's table. Results of a superseded run are ignored.
func (s *Store) complete(generation uint64, unclaimed UnclaimedPayouts) bool {

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.generation != generation || s.synced != SYNCING {
		return false
	}

	if s.unclaimed == nil {
		s.unclaimed = make(UnclaimedPayouts, len(unclaimed))
	}
	for era, validators := range unclaimed {
		s.unclaimed[era] = validators
	}

	s.synced = SYNCED
	s.errMsg = ""
	metrics.SetSyncState(string(SYNCED))

	return true
}

func (s *Store) fail(generation uint64, err error) bool {

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.generation != generation || s.synced != SYNCING {
		return false
	}

	s.synced = ERRORED
	s.errMsg = err.Error()
	metrics.SetSyncState(string(ERRORED))

	return true
}
