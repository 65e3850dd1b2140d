package notifications

import (
	"encoding/json"

	"github.com/containrrr/shoutrrr"
	router "github.com/containrrr/shoutrrr/pkg/router"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// NotifyShoutrrr sends through any service shoutrrr supports (discord, slack, matrix...)
type NotifyShoutrrr struct {
	URLs    []string `json:"urls"`
	Enabled bool     `json:"enabled"`
	senders []*router.ServiceRouter
	storage ConfigStore
}

func (n *NotificationHandler) NewShoutrrr(config []byte) (*NotifyShoutrrr, error) {

	ns := &NotifyShoutrrr{
		Enabled: true,
		storage: n.storage,
	}

	if err := json.Unmarshal(config, ns); err != nil {
		return ns, errors.Wrap(err, "Unable to unmarshal shoutrrr config")
	}

	for _, url := range ns.URLs {
		sender, err := shoutrrr.CreateSender(url)
		if err != nil {
			return ns, errors.Wrap(err, "Unable to create shoutrrr sender")
		}
		ns.senders = append(ns.senders, sender)
	}

	return ns, nil
}

func (n *NotifyShoutrrr) IsEnabled() bool {
	return n.Enabled
}

func (n *NotifyShoutrrr) Send(msg string) {

	for _, sender := range n.senders {
		for _, err := range sender.Send(msg, nil) {
			if err != nil {
				log.WithError(err).Warn("Unable to send shoutrrr notification")
			}
		}
	}

	log.WithField("MSG", msg).Info("Sent Shoutrrr Message(s)")
}

func (n *NotifyShoutrrr) SaveConfig() error {

	config, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "Unable to marshal shoutrrr config")
	}

	if err := n.storage.SaveNotifiersConfig(SHOUTRRR, config); err != nil {
		return errors.Wrap(err, "Unable to save shoutrrr config")
	}

	return nil
}
