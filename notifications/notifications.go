package notifications

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type NotificationCategory int

const (
	STARTUP NotificationCategory = iota + 1
	PAYOUTS
	SYNC_FAIL
)

const (
	TELEGRAM = "telegram"
	SHOUTRRR = "shoutrrr"
)

// Repeats of a category inside this period are dropped
const categoryCooldown = 10 * time.Minute

type Notifier interface {
	IsEnabled() bool
	Send(string)
	SaveConfig() error
}

// ConfigStore persists notifier configs, satisfied by *storage.Storage
type ConfigStore interface {
	GetNotifiersConfig(notifier string) ([]byte, error)
	SaveNotifiersConfig(notifier string, config []byte) error
}

type NotificationHandler struct {
	notifiers        map[string]Notifier
	lastSentCategory map[NotificationCategory]time.Time
	storage          ConfigStore
	lock             sync.RWMutex
}

func NewHandler(db ConfigStore) (*NotificationHandler, error) {

	n := &NotificationHandler{
		notifiers:        make(map[string]Notifier, 2),
		lastSentCategory: make(map[NotificationCategory]time.Time),
		storage:          db,
	}

	// Handler stays usable with whatever loaded
	if err := n.LoadNotifiers(); err != nil {
		return n, errors.Wrap(err, "Failed New Notification")
	}

	return n, nil
}

func (n *NotificationHandler) LoadNotifiers() error {

	for _, notifier := range []string{TELEGRAM, SHOUTRRR} {

		config, err := n.storage.GetNotifiersConfig(notifier)
		if err != nil {
			return errors.Wrapf(err, "Unable to load %s config", notifier)
		}

		// Nothing saved yet
		if config == nil {
			continue
		}

		// Don't save what we just loaded
		if err := n.Configure(notifier, config, false); err != nil {
			return errors.Wrapf(err, "Unable to init %s", notifier)
		}
	}

	return nil
}

// Configure (re)creates a notifier from its JSON config, optionally saving it
func (n *NotificationHandler) Configure(notifier string, config []byte, saveConfig bool) error {

	var (
		nt  Notifier
		err error
	)

	switch notifier {
	case TELEGRAM:
		nt, err = n.NewTelegram(config)
	case SHOUTRRR:
		nt, err = n.NewShoutrrr(config)
	default:
		return errors.New("Unknown notification type")
	}

	if err != nil {
		return err
	}

	if saveConfig {
		if err := nt.SaveConfig(); err != nil {
			return err
		}
	}

	n.lock.Lock()
	n.notifiers[notifier] = nt
	n.lock.Unlock()

	return nil
}

// SendNotification sends message through every enabled notifier, at most once
// per category cooldown
func (n *NotificationHandler) SendNotification(message string, category NotificationCategory) {

	n.lock.Lock()
	if last, ok := n.lastSentCategory[category]; ok && time.Since(last) < categoryCooldown {
		n.lock.Unlock()
		log.WithField("Category", category).Debug("Notification category on cooldown")
		return
	}
	n.lastSentCategory[category] = time.Now()

	notifiers := make([]Notifier, 0, len(n.notifiers))
	for _, nt := range n.notifiers {
		notifiers = append(notifiers, nt)
	}
	n.lock.Unlock()

	for _, nt := range notifiers {
		if nt.IsEnabled() {
			nt.Send(message)
		}
	}
}

// TestSend sends message through one notifier, ignoring cooldowns
func (n *NotificationHandler) TestSend(notifier string, message string) error {

	n.lock.RLock()
	nt, ok := n.notifiers[notifier]
	n.lock.RUnlock()

	if !ok {
		return errors.Errorf("Notifier %s not configured", notifier)
	}

	nt.Send(message)

	return nil
}

func (n *NotificationHandler) GetConfig() (json.RawMessage, error) {

	n.lock.RLock()
	defer n.lock.RUnlock()

	// Marshal the current Notifiers as the current config
	// Return RawMessage so as not to double Marshal
	bts, err := json.Marshal(n.notifiers)
	return json.RawMessage(bts), err
}
