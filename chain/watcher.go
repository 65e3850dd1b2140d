package chain

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// EraUpdate is sent whenever the active era, the account or its nominating state changes
type EraUpdate struct {
	ActiveEra  uint32
	Account    string
	Nominating bool
}

// EraQuerier is the part of the client polled by the watcher
type EraQuerier interface {
	URL() string
	ActiveEra(ctx context.Context) (uint32, error)
	IsNominating(ctx context.Context, account string) (bool, error)
}

// WatchActiveEra polls the active era and the nominating state of the active
// account every interval, sending an update on the returned channel when
// either changes. The channel is closed when ctx is done.
func WatchActiveEra(ctx context.Context, wg *sync.WaitGroup, client EraQuerier, status *Status, account func() string, interval time.Duration) <-chan EraUpdate {

	updates := make(chan EraUpdate, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(updates)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last EraUpdate
		first := true

		for {
			current, err := pollEra(ctx, client, account())
			if err != nil {
				log.WithError(err).WithField("Endpoint", client.URL()).Error("Unable to poll active era")
				status.SetError(err)
			} else {
				status.ClearError()
				status.SetEra(current.ActiveEra, client.URL())
				status.SetNominating(current.Account, current.Nominating)

				if first || current != last {
					log.WithFields(log.Fields{
						"ActiveEra": current.ActiveEra, "Account": current.Account, "Nominating": current.Nominating,
					}).Info("Era update")

					select {
					case updates <- current:
					case <-ctx.Done():
						return
					}

					last = current
					first = false
				}
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	return updates
}

func pollEra(ctx context.Context, client EraQuerier, account string) (EraUpdate, error) {

	update := EraUpdate{Account: account}

	era, err := client.ActiveEra(ctx)
	if err != nil {
		return update, err
	}
	update.ActiveEra = era

	if account == "" {
		return update, nil
	}

	nominating, err := client.IsNominating(ctx, account)
	if err != nil {
		return update, err
	}
	update.Nominating = nominating

	return update, nil
}
