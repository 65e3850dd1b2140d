package chain

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Client sends queries to the current endpoint. When a query fails and a
// backup endpoint is configured, the client switches over and retries once.
type Client struct {
	Current Endpoint
	Primary Endpoint
	Backup  Endpoint

	IsPrimary bool
	lock      sync.RWMutex
}

func NewClient(primary, backup Endpoint) *Client {
	return &Client{
		Current:   primary,
		Primary:   primary,
		Backup:    backup,
		IsPrimary: true,
	}
}

// Connected is true once the client has an endpoint to talk to
func (c *Client) Connected() bool {
	return c != nil && c.current() != nil
}

func (c *Client) UseBackup() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.Current = c.Backup
	c.IsPrimary = false
}

func (c *Client) UsePrimary() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.Current = c.Primary
	c.IsPrimary = true
}

// RetryPrimary switches back to the primary endpoint once it answers again
func (c *Client) RetryPrimary(ctx context.Context) {

	c.lock.RLock()
	onBackup := !c.IsPrimary && c.Primary != nil
	primary := c.Primary
	c.lock.RUnlock()

	if !onBackup {
		return
	}

	if _, err := primary.ActiveEra(ctx); err != nil {
		log.WithError(err).WithField("Endpoint", primary.URL()).Debug("Primary endpoint still failing")
		return
	}

	log.WithField("Endpoint", primary.URL()).Info("Switching back to primary endpoint")
	c.UsePrimary()
}

func (c *Client) current() Endpoint {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.Current
}

// URL of the endpoint currently in use
func (c *Client) URL() string {
	if e := c.current(); e != nil {
		return e.URL()
	}
	return ""
}

func (c *Client) do(ctx context.Context, fn func(Endpoint) error) error {

	current := c.current()

	err := fn(current)
	if err == nil || c.Backup == nil || ctx.Err() != nil {
		return err
	}

	log.WithError(err).WithField("Endpoint", current.URL()).Warn("RPC query failed, switching endpoint")

	c.switchFrom(current)

	return fn(c.current())
}

// switchFrom moves off the failed endpoint. Concurrent callers that failed
// on the same endpoint switch only once.
func (c *Client) switchFrom(failed Endpoint) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.Current != failed {
		return
	}

	if c.IsPrimary {
		c.Current = c.Backup
	} else {
		c.Current = c.Primary
	}
	c.IsPrimary = !c.IsPrimary
}

func (c *Client) ActiveEra(ctx context.Context) (era uint32, err error) {
	err = c.do(ctx, func(e Endpoint) error {
		era, err = e.ActiveEra(ctx)
		return err
	})
	return era, err
}

func (c *Client) IsNominating(ctx context.Context, account string) (nominating bool, err error) {
	err = c.do(ctx, func(e Endpoint) error {
		nominating, err = e.IsNominating(ctx, account)
		return err
	})
	return nominating, err
}

func (c *Client) EraStakers(ctx context.Context, era uint32) (exposures []Exposure, err error) {
	err = c.do(ctx, func(e Endpoint) error {
		exposures, err = e.EraStakers(ctx, era)
		return err
	})
	return exposures, err
}

func (c *Client) Bonded(ctx context.Context, stashes []string) (controllers map[string]string, err error) {
	err = c.do(ctx, func(e Endpoint) error {
		controllers, err = e.Bonded(ctx, stashes)
		return err
	})
	return controllers, err
}

func (c *Client) Ledgers(ctx context.Context, controllers []string) (ledgers map[string]Ledger, err error) {
	err = c.do(ctx, func(e Endpoint) error {
		ledgers, err = e.Ledgers(ctx, controllers)
		return err
	})
	return ledgers, err
}

func (c *Client) ErasValidatorReward(ctx context.Context, era uint32) (reward decimal.Decimal, ok bool, err error) {
	err = c.do(ctx, func(e Endpoint) error {
		reward, ok, err = e.ErasValidatorReward(ctx, era)
		return err
	})
	return reward, ok, err
}

func (c *Client) ErasRewardPoints(ctx context.Context, era uint32) (points RewardPoints, err error) {
	err = c.do(ctx, func(e Endpoint) error {
		points, err = e.ErasRewardPoints(ctx, era)
		return err
	})
	return points, err
}

func (c *Client) ErasValidatorPrefs(ctx context.Context, era uint32, validator string) (prefs ValidatorPrefs, err error) {
	err = c.do(ctx, func(e Endpoint) error {
		prefs, err = e.ErasValidatorPrefs(ctx, era, validator)
		return err
	})
	return prefs, err
}
