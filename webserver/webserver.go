package webserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"stakedash/chain"
	"stakedash/metrics"
	"stakedash/notifications"
	"stakedash/payouts"
	"stakedash/storage"
	"stakedash/util"
)

// PayoutsService is what the API needs from the payouts handler
type PayoutsService interface {
	State() payouts.State
	EraPayouts(era string) (map[string]decimal.Decimal, bool)
	SetAccount(ctx context.Context, account string)
	Resync(ctx context.Context) bool
}

type WebServer struct {
	constants           *util.NetworkConstants
	storage             *storage.Storage
	status              *chain.Status
	payoutsHandler      PayoutsService
	notificationHandler *notifications.NotificationHandler
	httpSvr             *http.Server
	accessLog           *io.PipeWriter
}

type WebServerArgs struct {
	Constants           *util.NetworkConstants
	Storage             *storage.Storage
	Status              *chain.Status
	PayoutsHandler      PayoutsService
	NotificationHandler *notifications.NotificationHandler
	BindAddr            string
	BindPort            int
	ShutdownChannel     <-chan interface{}
	WG                  *sync.WaitGroup
}

func New(args WebServerArgs) *WebServer {
	return &WebServer{
		constants:           args.Constants,
		storage:             args.Storage,
		status:              args.Status,
		payoutsHandler:      args.PayoutsHandler,
		notificationHandler: args.NotificationHandler,
		accessLog:           log.WithField("Source", "http").WriterLevel(log.TraceLevel),
	}
}

// Start binds the API and serves it until the shutdown channel closes.
// Caller must wg.Add(1) beforehand.
func Start(args WebServerArgs) (*WebServer, error) {

	ws := New(args)

	httpAddr := fmt.Sprintf("%s:%d", args.BindAddr, args.BindPort)
	ws.httpSvr = &http.Server{
		Handler:      ws.Router(),
		Addr:         httpAddr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	log.WithField("Addr", httpAddr).Info("Stakedash API Listening")

	// Launch webserver in background
	errc := make(chan error, 1)
	go func() {
		if err := ws.httpSvr.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Httpserver: ListenAndServe()")
			errc <- err
		}
		log.Info("Httpserver: Shutdown")
	}()

	// Catch immediate bind failures
	select {
	case err := <-errc:
		args.WG.Done()
		return nil, errors.Wrap(err, "Unable to start webserver")
	case <-time.After(250 * time.Millisecond):
	}

	// Wait for shutdown signal on channel
	go func() {
		defer args.WG.Done()

		<-args.ShutdownChannel

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := ws.httpSvr.Shutdown(ctx); err != nil {
			log.WithError(err).Error("Httpserver: Shutdown()")
		}

		ws.accessLog.Close()
	}()

	return ws, nil
}

func (ws *WebServer) Router() http.Handler {

	router := mux.NewRouter()

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/health", ws.getHealth).Methods("GET")
	apiRouter.HandleFunc("/status", ws.getStatus).Methods("GET")
	apiRouter.HandleFunc("/account", ws.getAccount).Methods("GET")
	apiRouter.HandleFunc("/account", ws.setAccount).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/payouts", ws.getPayouts).Methods("GET")
	apiRouter.HandleFunc("/payouts/era", ws.getEraPayouts).Methods("GET")
	apiRouter.HandleFunc("/payouts/history", ws.getPayoutsHistory).Methods("GET")
	apiRouter.HandleFunc("/payouts/resync", ws.resyncPayouts).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/settings", ws.getSettings).Methods("GET")
	apiRouter.HandleFunc("/settings/endpoints", ws.addEndpoint).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/settings/deleteendpoint", ws.deleteEndpoint).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/settings/telegram", ws.saveTelegram).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/settings/shoutrrr", ws.saveShoutrrr).Methods("POST", "OPTIONS")

	router.Handle("/metrics", metrics.Handler())

	// Allow the dashboard to be served from elsewhere
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)

	return handlers.CombinedLoggingHandler(ws.accessLog, cors(router))
}
