package webserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakedash/chain"
	"stakedash/notifications"
	"stakedash/payouts"
	"stakedash/storage"
	"stakedash/util"
)

const alice = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

type fakePayouts struct {
	lock    sync.Mutex
	state   payouts.State
	resyncs int
	syncing bool
}

func (f *fakePayouts) State() payouts.State {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.state
}

func (f *fakePayouts) EraPayouts(era string) (map[string]decimal.Decimal, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	p, ok := f.state.UnclaimedPayouts[era]
	return p, ok
}

// Mirrors the store: a new account discards the table
func (f *fakePayouts) SetAccount(ctx context.Context, account string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.state.Subject.Account != account {
		f.state.Subject.Account = account
		f.state.UnclaimedPayouts = nil
		f.state.PayoutsSynced = payouts.UNSYNCED
	}
}

func (f *fakePayouts) Resync(ctx context.Context) bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.syncing {
		return false
	}
	f.resyncs++
	return true
}

func newTestServer(t *testing.T) (*WebServer, *fakePayouts, *storage.Storage) {

	db, err := storage.InitStorage(t.TempDir(), util.NETWORK_WESTEND)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	nc, err := util.GetNetworkConstants(util.NETWORK_WESTEND)
	require.NoError(t, err)

	nh, err := notifications.NewHandler(db)
	require.NoError(t, err)

	fp := &fakePayouts{
		state: payouts.State{
			Subject:       payouts.Subject{Network: util.NETWORK_WESTEND, Account: alice},
			ActiveEra:     10,
			PayoutsSynced: payouts.SYNCED,
			UnclaimedPayouts: payouts.UnclaimedPayouts{
				"9": {"VAL1": decimal.RequireFromString("45"), "VAL2": decimal.RequireFromString("300")},
			},
		},
	}

	ws := New(WebServerArgs{
		Constants:           nc,
		Storage:             db,
		Status:              chain.NewStatus(util.NETWORK_WESTEND),
		PayoutsHandler:      fp,
		NotificationHandler: nh,
	})

	return ws, fp, db
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	out := make(map[string]interface{})
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}

	return rec, out
}

func TestGetPayouts(t *testing.T) {

	ws, _, _ := newTestServer(t)

	rec, out := doRequest(t, ws.Router(), "GET", "/api/payouts", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "synced", out["payoutsSynced"])
	assert.Equal(t, "345", out["total"])
	assert.Equal(t, "0.000000000345", out["totalUnit"])
	assert.Equal(t, "WND", out["unit"])

	unclaimed := out["unclaimedPayouts"].(map[string]interface{})
	assert.Equal(t, "45", unclaimed["9"].(map[string]interface{})["VAL1"])
}

func TestGetEraPayouts(t *testing.T) {

	ws, _, _ := newTestServer(t)

	rec, out := doRequest(t, ws.Router(), "GET", "/api/payouts/era?e=9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "300", out["payouts"].(map[string]interface{})["VAL2"])

	rec, _ = doRequest(t, ws.Router(), "GET", "/api/payouts/era?e=8", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, out = doRequest(t, ws.Router(), "GET", "/api/payouts/era?e=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, out["error"], "Unable to parse era")
}

func TestSetAccountResetsPayouts(t *testing.T) {

	ws, fp, db := newTestServer(t)

	bob := "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"

	rec, _ := doRequest(t, ws.Router(), "POST", "/api/account", `{"account":"`+bob+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	saved, err := db.GetActiveAccount()
	require.NoError(t, err)
	assert.Equal(t, bob, saved)

	_, out := doRequest(t, ws.Router(), "GET", "/api/payouts", "")
	assert.Nil(t, out["unclaimedPayouts"])
	assert.Equal(t, "unsynced", out["payoutsSynced"])
	assert.Equal(t, bob, fp.State().Subject.Account)

	_, out = doRequest(t, ws.Router(), "GET", "/api/account", "")
	assert.Equal(t, bob, out["account"])
}

func TestSetAccountRejectsInvalid(t *testing.T) {

	ws, fp, db := newTestServer(t)

	// Polkadot format address on westend
	rec, out := doRequest(t, ws.Router(), "POST", "/api/account", `{"account":"15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, out["error"], "Invalid westend address")

	rec, _ = doRequest(t, ws.Router(), "POST", "/api/account", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	saved, err := db.GetActiveAccount()
	require.NoError(t, err)
	assert.Empty(t, saved)
	assert.Equal(t, alice, fp.State().Subject.Account)
}

func TestResync(t *testing.T) {

	ws, fp, _ := newTestServer(t)

	rec, _ := doRequest(t, ws.Router(), "POST", "/api/payouts/resync", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, fp.resyncs)

	fp.syncing = true
	rec, _ = doRequest(t, ws.Router(), "POST", "/api/payouts/resync", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestEndpointSettings(t *testing.T) {

	ws, _, db := newTestServer(t)

	rec, out := doRequest(t, ws.Router(), "POST", "/api/settings/endpoints", `{"rpc":"wss://example.org/ws"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	id := int(out["id"].(float64))

	endpoints, err := db.GetRPCEndpoints()
	require.NoError(t, err)
	assert.Equal(t, "wss://example.org/ws", endpoints[id])

	rec, _ = doRequest(t, ws.Router(), "POST", "/api/settings/endpoints", `{"rpc":"ftp://example.org"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = doRequest(t, ws.Router(), "GET", "/api/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "westend", out["network"])

	rec, _ = doRequest(t, ws.Router(), "POST", "/api/settings/deleteendpoint", `{"rpc":`+jsonInt(id)+`}`)
	require.Equal(t, http.StatusOK, rec.Code)

	endpoints, err = db.GetRPCEndpoints()
	require.NoError(t, err)
	assert.NotContains(t, endpoints, id)

	rec, _ = doRequest(t, ws.Router(), "POST", "/api/settings/deleteendpoint", `{"rpc":`+jsonInt(id)+`}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusAndHealth(t *testing.T) {

	ws, _, _ := newTestServer(t)

	rec, out := doRequest(t, ws.Router(), "GET", "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["ok"])

	rec, out = doRequest(t, ws.Router(), "GET", "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "westend", out["network"])
	assert.Equal(t, float64(10), out["activeEra"])
	assert.Equal(t, "synced", out["payoutsSynced"])
}

func TestMetricsEndpoint(t *testing.T) {

	ws, _, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	ws.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stakedash_payouts_sync_state")
}

func TestPayoutsHistory(t *testing.T) {

	ws, _, db := newTestServer(t)

	require.NoError(t, db.SaveUnclaimedPayouts(util.NETWORK_WESTEND, 9, alice, []byte(`{"VAL1":"45"}`), 7))
	require.NoError(t, db.RecordSync(util.NETWORK_WESTEND, alice, 10, []byte(`{"ae":10,"ne":1,"t":"45"}`)))

	rec, out := doRequest(t, ws.Router(), "GET", "/api/payouts/history", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, alice, out["account"])
	assert.Equal(t, float64(7), out["windowEndEra"])
	assert.Equal(t, float64(10), out["syncedEra"])
	assert.Equal(t, "45", out["eras"].(map[string]interface{})["9"].(map[string]interface{})["VAL1"])
	assert.Equal(t, float64(1), out["lastSync"].(map[string]interface{})["ne"])
}

func jsonInt(i int) string {
	b, _ := json.Marshal(i)
	return string(b)
}
