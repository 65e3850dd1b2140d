package webserver

import (
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"stakedash/payouts"
	"stakedash/storage"
)

func (ws *WebServer) getPayouts(w http.ResponseWriter, r *http.Request) {

	log.Trace("API - getPayouts")

	state := ws.payoutsHandler.State()
	total := state.UnclaimedPayouts.Total()

	payoutsData := map[string]interface{}{
		"unclaimedPayouts": state.UnclaimedPayouts,
		"payoutsSynced":    state.PayoutsSynced,
		"activeEra":        state.ActiveEra,
		"total":            total,
		"totalUnit":        ws.constants.PlanckToUnit(total),
		"unit":             ws.constants.Unit,
	}

	if state.Error != "" {
		payoutsData["error"] = state.Error
	}

	apiReturn(payoutsData, w)
}

// getEraPayouts returns the validator => amount table of one era
func (ws *WebServer) getEraPayouts(w http.ResponseWriter, r *http.Request) {

	log.Trace("API - getEraPayouts")

	// Get query parameter
	keys := r.URL.Query()
	era, err := strconv.ParseUint(keys.Get("e"), 10, 32)
	if err != nil {
		apiError(errors.Wrap(err, "Unable to parse era"), w)

		return
	}

	eraPayouts, ok := ws.payoutsHandler.EraPayouts(strconv.FormatUint(era, 10))
	if !ok {
		apiErrorCode(errors.Errorf("No unclaimed payouts for era %d", era), http.StatusNotFound, w)

		return
	}

	apiReturn(map[string]interface{}{
		"era":     era,
		"payouts": eraPayouts,
	}, w)
}

func (ws *WebServer) resyncPayouts(w http.ResponseWriter, r *http.Request) {

	log.Trace("API - resyncPayouts")

	// CORS preflight
	if r.Method == http.MethodOptions {
		return
	}

	if !ws.payoutsHandler.Resync(r.Context()) {
		apiErrorCode(errors.New("Payouts sync already in progress"), http.StatusConflict, w)

		return
	}

	apiReturnOk(w)
}

// getPayoutsHistory returns what was persisted by past runs for the active
// account: per-era unclaimed payouts and the last sync record
func (ws *WebServer) getPayoutsHistory(w http.ResponseWriter, r *http.Request) {

	log.Trace("API - getPayoutsHistory")

	subject := ws.payoutsHandler.State().Subject

	eras, err := ws.storage.GetUnclaimedPayoutsAll(subject.Network, subject.Account)
	if err != nil {
		log.WithError(err).Error("API - getPayoutsHistory")
		apiErrorCode(errors.Wrap(err, "Unable to get unclaimed payouts from DB"), http.StatusInternalServerError, w)

		return
	}

	lastSync, err := payouts.LoadSyncRecord(ws.storage, subject)
	if err != nil {
		log.WithError(err).Error("API - getPayoutsHistory")
		apiErrorCode(err, http.StatusInternalServerError, w)

		return
	}

	windowEndEra, err := ws.storage.GetWindowEndEra(storage.UNCLAIMED_BUCKET, subject.Network)
	if err != nil {
		log.WithError(err).Error("API - getPayoutsHistory")
		apiErrorCode(errors.Wrap(err, "Unable to get window end era from DB"), http.StatusInternalServerError, w)

		return
	}

	watermark, err := ws.storage.GetSyncedWatermark(subject.Network)
	if err != nil {
		log.WithError(err).Error("API - getPayoutsHistory")
		apiErrorCode(errors.Wrap(err, "Unable to get synced watermark from DB"), http.StatusInternalServerError, w)

		return
	}

	apiReturn(map[string]interface{}{
		"account":      subject.Account,
		"eras":         eras,
		"lastSync":     lastSync,
		"windowEndEra": windowEndEra,
		"syncedEra":    watermark,
	}, w)
}
