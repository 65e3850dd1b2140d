package webserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type ApiError struct {
	Error string `json:"error"`
}

func apiError(err error, w http.ResponseWriter) {
	apiErrorCode(err, http.StatusBadRequest, w)
}

func apiErrorCode(err error, code int, w http.ResponseWriter) {
	e, _ := json.Marshal(ApiError{err.Error()})
	http.Error(w, string(e), code)
}

func apiReturnOk(w http.ResponseWriter) {
	apiReturn(map[string]bool{"ok": true}, w)
}

func apiReturn(data interface{}, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("UI Return Encode Failure")
	}
}

func (ws *WebServer) getHealth(w http.ResponseWriter, r *http.Request) {
	apiReturnOk(w)
}

func (ws *WebServer) getStatus(w http.ResponseWriter, r *http.Request) {

	log.Trace("API - getStatus")

	state := ws.payoutsHandler.State()

	status := map[string]interface{}{
		"network":       state.Subject.Network,
		"account":       state.Subject.Account,
		"activeEra":     state.ActiveEra,
		"payoutsSynced": state.PayoutsSynced,
		"ts":            time.Now().UTC().Unix(),
	}

	if ws.status != nil {
		chainStatus := ws.status.Snapshot()
		status["endpoint"] = chainStatus.Endpoint
		status["nominating"] = chainStatus.Nominating
		status["chainError"] = chainStatus.ErrorMsg
	}

	apiReturn(status, w)
}

func (ws *WebServer) getAccount(w http.ResponseWriter, r *http.Request) {

	log.Trace("API - getAccount")

	apiReturn(map[string]string{
		"account": ws.payoutsHandler.State().Subject.Account,
	}, w)
}

// setAccount validates, saves and switches to a new active account.
// An empty account clears it.
func (ws *WebServer) setAccount(w http.ResponseWriter, r *http.Request) {

	log.Trace("API - setAccount")

	// CORS preflight
	if r.Method == http.MethodOptions {
		return
	}

	k := make(map[string]string)
	if err := json.NewDecoder(r.Body).Decode(&k); err != nil {
		apiError(errors.Wrap(err, "Cannot decode body for account"), w)

		return
	}

	account := k["account"]
	if account != "" && !ws.constants.IsValidAddress(account) {
		apiError(errors.Errorf("Invalid %s address: %s", ws.constants.Name, account), w)

		return
	}

	if err := ws.storage.SetActiveAccount(account); err != nil {
		log.WithError(err).WithField("Account", account).Error("API SetAccount")
		apiErrorCode(errors.Wrap(err, "Cannot save account to DB"), http.StatusInternalServerError, w)

		return
	}

	ws.payoutsHandler.SetAccount(r.Context(), account)

	log.WithField("Account", account).Info("API Set Account")

	apiReturnOk(w)
}
