package exposure

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"stakedash/chain"
)

const (
	TaskProcessEraForExposure = "processEraForExposure"
)

// ValidatorExposure is the account's stake behind one validator in an era
type ValidatorExposure struct {
	Staked      decimal.Decimal `json:"staked"`
	Total       decimal.Decimal `json:"total"`
	IsValidator bool            `json:"isValidator"`
}

// EraExposure maps validator address => the account's exposure to it
type EraExposure map[string]ValidatorExposure

type Request struct {
	Task        string
	Era         uint32
	Who         string
	NetworkName string
	Exposures   []chain.Exposure
}

type Response struct {
	Task              string
	NetworkName       string
	Who               string
	Era               uint32
	ExposedValidators EraExposure

	// Set when the request could not be processed
	Err error
}

// Resolver scans era exposure snapshots for one account off the caller's goroutine.
// Requests are handled in the order they are submitted; each response carries
// the network, account and era of its request.
type Resolver struct {
	requests  chan Request
	responses chan Response

	scan func(who string, exposures []chain.Exposure) EraExposure
}

func NewResolver(queueSize int) *Resolver {
	return &Resolver{
		requests:  make(chan Request, queueSize),
		responses: make(chan Response, queueSize),
		scan:      ProcessEraForExposure,
	}
}

// Submit queues a request, blocking while the queue is full
func (r *Resolver) Submit(ctx context.Context, req Request) error {
	select {
	case r.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Responses delivers completed requests
func (r *Resolver) Responses() <-chan Response {
	return r.responses
}

// Start runs the worker until ctx is done
func (r *Resolver) Start(ctx context.Context, wg *sync.WaitGroup) {

	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case req := <-r.requests:
				resp := r.handle(req)

				select {
				case r.responses <- resp:
				case <-ctx.Done():
					return
				}

			case <-ctx.Done():
				log.Debug("Exposure resolver stopped")
				return
			}
		}
	}()
}

func (r *Resolver) handle(req Request) (resp Response) {

	resp = Response{
		Task:        req.Task,
		NetworkName: req.NetworkName,
		Who:         req.Who,
		Era:         req.Era,
	}

	// Handle panic gracefully
	defer func() {
		if rec := recover(); rec != nil {
			log.WithField("Message", rec).WithFields(log.Fields{
				"Era": req.Era, "Who": req.Who,
			}).Error("Panic recovered in exposure resolver")
			resp.ExposedValidators = nil
			resp.Err = errors.Errorf("Unable to process exposure of era %d: %v", req.Era, rec)
		}
	}()

	if req.Task != TaskProcessEraForExposure {
		log.WithField("Task", req.Task).Warn("Unknown exposure resolver task")
		resp.Err = errors.Errorf("Unknown exposure resolver task %q", req.Task)
		return resp
	}

	resp.ExposedValidators = r.scan(req.Who, req.Exposures)

	return resp
}

// ProcessEraForExposure extracts the validators who was backing from an era's
// exposure snapshot. A validator's own stake counts when who is the validator.
func ProcessEraForExposure(who string, exposures []chain.Exposure) EraExposure {

	exposed := make(EraExposure)

	for _, e := range exposures {

		if e.Validator == who {
			exposed[e.Validator] = ValidatorExposure{
				Staked:      e.Own,
				Total:       e.Total,
				IsValidator: true,
			}
			continue
		}

		for _, o := range e.Others {
			if o.Who == who {
				exposed[e.Validator] = ValidatorExposure{
					Staked:      o.Value,
					Total:       e.Total,
					IsValidator: false,
				}
				break
			}
		}
	}

	return exposed
}
