package webserver

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"stakedash/notifications"
	"stakedash/storage"
)

func (ws *WebServer) saveTelegram(w http.ResponseWriter, r *http.Request) {
	ws.saveNotifier(notifications.TELEGRAM, w, r)
}

func (ws *WebServer) saveShoutrrr(w http.ResponseWriter, r *http.Request) {
	ws.saveNotifier(notifications.SHOUTRRR, w, r)
}

func (ws *WebServer) saveNotifier(notifier string, w http.ResponseWriter, r *http.Request) {

	log.WithField("Notifier", notifier).Trace("API - SaveNotifier")

	// CORS preflight
	if r.Method == http.MethodOptions {
		return
	}

	// Read the POST body as a string
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		log.WithError(err).Error("API SaveNotifier")
		apiError(errors.Wrap(err, "Failed to parse body"), w)

		return
	}

	// Send string to configure for JSON unmarshaling; make sure to save config to db
	if err := ws.notificationHandler.Configure(notifier, body, true); err != nil {
		log.WithError(err).Error("API SaveNotifier")
		apiError(errors.Wrapf(err, "Failed to configure %s", notifier), w)

		return
	}

	if err := ws.notificationHandler.TestSend(notifier, "Test message from stakedash"); err != nil {
		log.WithError(err).Error("API SaveNotifier")
		apiError(errors.Wrapf(err, "Failed to execute %s test", notifier), w)

		return
	}

	apiReturnOk(w)
}

func (ws *WebServer) getSettings(w http.ResponseWriter, r *http.Request) {

	log.Trace("API - GetSettings")

	// Get RPC endpoints
	endpoints, err := ws.storage.GetRPCEndpoints()
	if err != nil {
		apiError(errors.Wrap(err, "Cannot get endpoints"), w)

		return
	}
	log.WithField("Endpoints", endpoints).Debug("API Settings Endpoints")

	// Get Notification settings
	notifs, err := ws.notificationHandler.GetConfig() // Returns json.RawMessage
	if err != nil {
		apiError(errors.Wrap(err, "Cannot get notification settings"), w)

		return
	}
	log.WithField("Notifications", string(notifs)).Debug("API Settings Notifications")

	apiReturn(map[string]interface{}{
		"network":       ws.constants.Name,
		"endpoints":     endpoints,
		"notifications": notifs,
	}, w)
}

// addEndpoint saves an RPC endpoint; it is used from the next start
func (ws *WebServer) addEndpoint(w http.ResponseWriter, r *http.Request) {

	log.Trace("API - AddEndpoint")

	// CORS preflight
	if r.Method == http.MethodOptions {
		return
	}

	k := make(map[string]string)
	if err := json.NewDecoder(r.Body).Decode(&k); err != nil {
		apiError(errors.Wrap(err, "Cannot decode body for rpc add"), w)

		return
	}

	rpc := k["rpc"]
	if !strings.HasPrefix(rpc, "ws://") && !strings.HasPrefix(rpc, "wss://") &&
		!strings.HasPrefix(rpc, "http://") && !strings.HasPrefix(rpc, "https://") {
		apiError(errors.Errorf("Invalid RPC endpoint: %s", rpc), w)

		return
	}

	// Save new RPC to db to get id
	id, err := ws.storage.AddRPCEndpoint(rpc)
	if err != nil {
		log.WithError(err).WithField("Endpoint", rpc).Error("API AddEndpoint")
		apiError(errors.Wrap(err, "Cannot add endpoint to DB"), w)

		return
	}

	log.WithFields(log.Fields{"Endpoint": rpc, "ID": id}).Info("API Added Endpoint")

	apiReturn(map[string]int{"id": id}, w)
}

func (ws *WebServer) deleteEndpoint(w http.ResponseWriter, r *http.Request) {

	log.Trace("API - DeleteEndpoint")

	// CORS preflight
	if r.Method == http.MethodOptions {
		return
	}

	k := make(map[string]int)
	if err := json.NewDecoder(r.Body).Decode(&k); err != nil {
		apiError(errors.Wrap(err, "Cannot decode body for rpc delete"), w)

		return
	}

	if err := ws.storage.DeleteRPCEndpoint(k["rpc"]); err != nil {
		if errors.Is(err, storage.ErrUnknownEndpoint) {
			apiErrorCode(err, http.StatusNotFound, w)

			return
		}

		log.WithError(err).WithField("Endpoint", k).Error("API DeleteEndpoint")
		apiError(errors.Wrap(err, "Cannot delete endpoint from DB"), w)

		return
	}

	log.WithField("Endpoint", k["rpc"]).Debug("API Deleted Endpoint")

	apiReturnOk(w)
}
