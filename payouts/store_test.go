package payouts

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSubjectChangeResets(t *testing.T) {

	s := NewStore("westend")
	assert.True(t, s.SetSubject("westend", "A"))
	assert.False(t, s.SetSubject("westend", "A"))

	gen, ok := s.beginSync(Subject{"westend", "A"})
	require.True(t, ok)
	assert.Equal(t, SYNCING, s.SyncState())

	require.True(t, s.complete(gen, UnclaimedPayouts{"9": {"V": d("45")}}))

	state := s.State()
	assert.Equal(t, SYNCED, state.PayoutsSynced)
	assertDecimal(t, "45", state.UnclaimedPayouts["9"]["V"])
	assertDecimal(t, "45", s.TotalUnclaimed())

	// Switching account discards the table before any new run
	assert.True(t, s.SetSubject("westend", "B"))

	state = s.State()
	assert.Nil(t, state.UnclaimedPayouts)
	assert.Equal(t, UNSYNCED, state.PayoutsSynced)
	assert.Equal(t, Subject{"westend", "B"}, state.Subject)
}

func TestStoreStaleResultsIgnored(t *testing.T) {

	s := NewStore("westend")
	s.SetSubject("westend", "A")

	gen, ok := s.beginSync(Subject{"westend", "A"})
	require.True(t, ok)

	// A second run can't start while one is in progress
	_, ok = s.beginSync(Subject{"westend", "A"})
	assert.False(t, ok)

	s.SetSubject("westend", "B")

	assert.False(t, s.complete(gen, UnclaimedPayouts{"9": {"V": d("45")}}))
	assert.False(t, s.fail(gen, errors.New("boom")))

	state := s.State()
	assert.Nil(t, state.UnclaimedPayouts)
	assert.Equal(t, UNSYNCED, state.PayoutsSynced)
	assert.Empty(t, state.Error)

	// Subject must still be current to begin
	_, ok = s.beginSync(Subject{"westend", "A"})
	assert.False(t, ok)
}

func TestStoreFail(t *testing.T) {

	s := NewStore("westend")
	s.SetSubject("westend", "A")

	gen, ok := s.beginSync(Subject{"westend", "A"})
	require.True(t, ok)

	require.True(t, s.fail(gen, errors.New("rpc down")))
	assert.Equal(t, ERRORED, s.SyncState())
	assert.Equal(t, "rpc down", s.State().Error)

	s.Reset()
	assert.Equal(t, UNSYNCED, s.SyncState())
	assert.Empty(t, s.State().Error)
}

func TestStoreStateIsCopy(t *testing.T) {

	s := NewStore("westend")
	s.SetSubject("westend", "A")

	gen, _ := s.beginSync(Subject{"westend", "A"})
	s.complete(gen, UnclaimedPayouts{"9": {"V": d("45")}})

	state := s.State()
	state.UnclaimedPayouts["9"]["V"] = decimal.NewFromInt(1)

	payouts, ok := s.EraPayouts("9")
	require.True(t, ok)
	assertDecimal(t, "45", payouts["V"])

	_, ok = s.EraPayouts("8")
	assert.False(t, ok)
}
