package notifications

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Overridden in tests
var telegramAPI = "https://api.telegram.org"

type NotifyTelegram struct {
	ChatIDs []int  `json:"chatids"`
	APIKey  string `json:"apikey"`
	Enabled bool   `json:"enabled"`
	storage ConfigStore
}

// NewTelegram creates a new NotifyTelegram object using a JSON byte-stream
// provided from either DB lookup or web UI.
func (n *NotificationHandler) NewTelegram(config []byte) (*NotifyTelegram, error) {

	nt := &NotifyTelegram{
		Enabled: true,
		storage: n.storage,
	}

	if err := json.Unmarshal(config, nt); err != nil {
		return nt, errors.Wrap(err, "Unable to unmarshal telegram config")
	}

	return nt, nil
}

func (n *NotifyTelegram) IsEnabled() bool {
	return n.Enabled
}

func (n *NotifyTelegram) Send(msg string) {
	// curl -G \
	//  --data-urlencode "chat_id=111112233" \
	//  --data-urlencode "text=$message" \
	//  https://api.telegram.org/bot${TOKEN}/sendMessage

	// HTTP client 10s timeout
	client := &http.Client{
		Timeout: time.Second * 10,
	}

	// Loop over chatIds, sending message
	for _, id := range n.ChatIDs {
		q := url.Values{}
		q.Set("text", msg)
		q.Set("chat_id", strconv.Itoa(id))

		n.sendMessage(client, q, id)
	}

	log.WithField("MSG", msg).Info("Sent Telegram Message(s)")
}

func (n *NotifyTelegram) sendMessage(client *http.Client, queryParams url.Values, chatID int) {

	req, err := http.NewRequest("GET", fmt.Sprintf("%s/bot%s/sendMessage", telegramAPI, n.APIKey), nil)
	if err != nil {
		log.WithError(err).Error("Unable to make telegram request")
		return
	}

	req.Header.Add("Content-type", "application/x-www-form-urlencoded")
	req.URL.RawQuery = queryParams.Encode()

	resp, err := client.Do(req)
	if err != nil {
		log.WithFields(log.Fields{
			"ChatId": chatID,
		}).WithError(err).Error("Unable to send telegram message")
		return
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		log.WithFields(log.Fields{
			"ChatId": chatID,
		}).WithError(err).Error("Unable to read telegram message response")
		return
	}

	log.WithField("Resp", string(body)).Debug("Telegram Reply")
}

func (n *NotifyTelegram) SaveConfig() error {

	// Marshal ourselves to []byte and send to storage manager
	config, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "Unable to marshal telegram config")
	}

	if err := n.storage.SaveNotifiersConfig(TELEGRAM, config); err != nil {
		return errors.Wrap(err, "Unable to save telegram config")
	}

	return nil
}
