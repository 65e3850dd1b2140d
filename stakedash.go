package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"stakedash/chain"
	"stakedash/exposure"
	"stakedash/notifications"
	"stakedash/payouts"
	"stakedash/storage"
	"stakedash/util"
	"stakedash/webserver"
)

var (
	version    = "dev"
	commitHash = "unknown"
)

type StakedashServer struct {
	*chain.Client
	*notifications.NotificationHandler
	*payouts.PayoutsHandler
	*webserver.WebServer
	*storage.Storage
	Constants *util.NetworkConstants
	Flags
}

// Flags Server flags
type Flags struct {
	networkName    string
	account        string
	rpcURL         string
	logDebug       bool
	logTrace       bool
	webUIAddr      string
	webUIPort      int
	dataDir        string
	maxEras        uint
	eraPoll        time.Duration
	resyncOnNewEra bool
}

func main() {

	var (
		err error
		wg  sync.WaitGroup
	)

	server := new(StakedashServer)
	server.parseArgs()

	// Logging
	setupLogging(server.logDebug, server.logTrace, server.dataDir)

	// Clean exits
	shutdownChannel := setupCloseChannel()

	ctx, ctxCancel := context.WithCancel(context.Background())

	server.Constants, err = util.GetNetworkConstants(server.networkName)
	if err != nil {
		log.WithError(err).Fatal("Unknown network")
	}

	// Open/Init database
	server.Storage, err = storage.InitStorage(server.dataDir, server.networkName)
	if err != nil {
		log.WithError(err).Fatal("Could not open storage")
	}

	// Start
	log.Infof("=== Stakedash %s (%s) ===", version, commitHash)
	log.Infof("=== Network: %s ===", server.networkName)

	if err := server.Storage.AddDefaultEndpoints(server.networkName); err != nil {
		log.WithError(err).Fatal("Could not add default endpoints")
	}

	server.NotificationHandler, err = notifications.NewHandler(server.Storage)
	if err != nil {
		log.WithError(err).Error("Unable to load notifiers")
	}

	// Connect to the chain
	server.Client, err = server.connect()
	if err != nil {
		log.WithError(err).Fatal("Cannot connect to any RPC endpoint")
	}

	account, err := server.activeAccount()
	if err != nil {
		log.WithError(err).Fatal("Cannot load active account")
	}

	// Exposure worker
	resolver := exposure.NewResolver(4)
	resolver.Start(ctx, &wg)

	cache, err := payouts.NewPersistentCache(server.Storage, 256)
	if err != nil {
		log.WithError(err).Fatal("Cannot create exposure cache")
	}

	store := payouts.NewStore(server.networkName)
	store.SetSubject(server.networkName, account)

	server.PayoutsHandler = payouts.NewPayoutsHandler(payouts.PayoutsHandlerArgs{
		Client:         server.Client,
		Cache:          cache,
		Resolver:       resolver,
		Store:          store,
		History:        server.Storage,
		Notifier:       server.NotificationHandler,
		Constants:      server.Constants,
		MaxEras:        uint32(server.maxEras),
		ResyncOnNewEra: server.resyncOnNewEra,
	})

	if account != "" {
		if last, err := payouts.LoadSyncRecord(server.Storage, store.Subject()); err != nil {
			log.WithError(err).Warn("Unable to load last sync record")
		} else if last != nil {
			log.WithFields(log.Fields{
				"ActiveEra": last.ActiveEra, "Eras": last.NumEras, "Total": last.Total.String(),
			}).Info("Last payouts sync")
		}
	}

	// Poll the chain for era changes
	status := chain.NewStatus(server.networkName)
	eraUpdates := chain.WatchActiveEra(ctx, &wg, server.Client, status, func() string {
		return store.Subject().Account
	}, server.eraPoll)

	wg.Add(1)
	go server.PayoutsHandler.Run(ctx, &wg, eraUpdates)

	wg.Add(1)
	go server.watchPrimary(ctx, &wg)

	// Start web UI
	wg.Add(1)
	server.WebServer, err = webserver.Start(webserver.WebServerArgs{
		Constants:           server.Constants,
		Storage:             server.Storage,
		Status:              status,
		PayoutsHandler:      server.PayoutsHandler,
		NotificationHandler: server.NotificationHandler,
		BindAddr:            server.webUIAddr,
		BindPort:            server.webUIPort,
		ShutdownChannel:     shutdownChannel,
		WG:                  &wg,
	})
	if err != nil {
		log.WithError(err).Error("Unable to start web UI")
		ctxCancel()
		wg.Wait()
		server.Storage.Close()
		os.Exit(1)
	}

	server.NotificationHandler.SendNotification(fmt.Sprintf("Stakedash started on %s", server.networkName), notifications.STARTUP)

	<-shutdownChannel
	log.Warn("Shutting things down...")
	ctxCancel()

	// Wait for threads to finish
	wg.Wait()

	// Clean close DB, logs
	server.Storage.Close()
	closeLogging()

	os.Exit(0)
}

// connect uses -rpc if given, else the saved endpoints in order. The first
// reachable endpoint is primary, the next one backup.
func (s *StakedashServer) connect() (*chain.Client, error) {

	urls := make([]string, 0)

	if s.rpcURL != "" {
		urls = append(urls, s.rpcURL)
	} else {
		endpoints, err := s.Storage.GetRPCEndpoints()
		if err != nil {
			return nil, err
		}

		// Oldest first
		ids := lo.Keys(endpoints)
		sort.Ints(ids)

		for _, id := range ids {
			urls = append(urls, endpoints[id])
		}
	}

	var connected []chain.Endpoint
	for _, url := range urls {
		if len(connected) == 2 {
			break
		}

		endpoint, err := chain.NewSubstrateClient(url, s.Constants.SS58Prefix)
		if err != nil {
			log.WithError(err).WithField("Endpoint", url).Warn("Unable to connect to RPC")
			continue
		}
		connected = append(connected, endpoint)
	}

	switch len(connected) {
	case 0:
		return nil, fmt.Errorf("None of %d endpoints reachable", len(urls))
	case 1:
		return chain.NewClient(connected[0], nil), nil
	}

	return chain.NewClient(connected[0], connected[1]), nil
}

// watchPrimary moves the client back to the primary endpoint after a failover
func (s *StakedashServer) watchPrimary(ctx context.Context, wg *sync.WaitGroup) {

	defer wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Client.RetryPrimary(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// activeAccount prefers -account, saving it, over the stored account
func (s *StakedashServer) activeAccount() (string, error) {

	if s.account == "" {
		return s.Storage.GetActiveAccount()
	}

	if !s.Constants.IsValidAddress(s.account) {
		return "", fmt.Errorf("Invalid %s address: %s", s.networkName, s.account)
	}

	if err := s.Storage.SetActiveAccount(s.account); err != nil {
		return "", err
	}

	return s.account, nil
}

func setupCloseChannel() chan interface{} {

	// Create channels for signals
	signalChan := make(chan os.Signal, 1)
	closingChan := make(chan interface{}, 1)

	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalChan
		close(closingChan)
	}()

	return closingChan
}

func (s *StakedashServer) parseArgs() {

	// Args
	flag.StringVar(&s.networkName, "network", util.NETWORK_POLKADOT, fmt.Sprintf("Which network to use: %s", util.AvailableNetworks()))
	flag.StringVar(&s.account, "account", "", "Account to check for unclaimed payouts (SS58)")
	flag.StringVar(&s.rpcURL, "rpc", "", "RPC endpoint to use instead of the saved endpoints")

	flag.BoolVar(&s.logDebug, "debug", false, "Enable debug-level logging")
	flag.BoolVar(&s.logTrace, "trace", false, "Enable trace-level logging")

	flag.StringVar(&s.webUIAddr, "webuiaddr", "127.0.0.1", "Address on which to bind web UI server")
	flag.IntVar(&s.webUIPort, "webuiport", 8082, "Port on which to bind web UI server")

	flag.StringVar(&s.dataDir, "datadir", "./", "Location of database")

	flag.UintVar(&s.maxEras, "max-eras", util.MaxSupportedPayoutEras, "Number of past eras to check for unclaimed payouts")
	flag.DurationVar(&s.eraPoll, "era-poll", 30*time.Second, "How often to poll the active era")
	flag.BoolVar(&s.resyncOnNewEra, "resync-on-new-era", true, "Recheck payouts when a new era starts")

	printVersion := flag.Bool("version", false, "Show version and exit")

	flag.Parse()

	// Handle print version and exit
	if *printVersion {
		log.Printf("Stakedash %s (%s)", version, commitHash)
		os.Exit(0)
	}

	// Sanity
	if !util.IsValidNetwork(s.networkName) {
		log.Errorf("Unknown network: %s", s.networkName)
		flag.Usage()
		os.Exit(1)
	}

	if s.maxEras == 0 {
		log.Error("-max-eras must be at least 1")
		flag.Usage()
		os.Exit(1)
	}
}
