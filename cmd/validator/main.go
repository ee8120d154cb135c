package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xbridge/bridge-coordinator/config"
	"github.com/xbridge/bridge-coordinator/db"
	"github.com/xbridge/bridge-coordinator/events"
	"github.com/xbridge/bridge-coordinator/ledger/dial"
	"github.com/xbridge/bridge-coordinator/logging"
	"github.com/xbridge/bridge-coordinator/repository"
	"github.com/xbridge/bridge-coordinator/validator"
)

const eventQueueSize = 256

func main() {
	logger := logging.New()

	cfg, err := config.ReadConfigFromFile("config.yml")
	if err != nil {
		logger.WithError(err).Fatal("can't read config")
	}
	logger.SetLevel(cfg.LogLevel)

	if cfg.Secrets.ValidatorKey == "" {
		logger.Fatal("BRIDGE_VALIDATOR_KEY is not set")
	}
	signer, err := validator.ParseSigner(cfg.Secrets.ValidatorKey)
	if err != nil {
		logger.WithError(err).Fatal("can't load validator key")
	}
	// Validators only read the chains, so the submission secrets are never needed here.
	cfg.Secrets.RelayerKey = ""
	cfg.Secrets.DoorSecret = ""

	dbConn, err := db.NewDB(cfg.DBConfig)
	if err != nil {
		logger.WithError(err).Fatal("can't connect to database")
	}
	defer dbConn.Close()

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		err := http.ListenAndServe(":2112", nil)
		if err != nil {
			logger.WithError(err).Fatal("can't start listener for prometheus metrics")
		}
	}()

	repo := repository.NewRepo(dbConn)
	bus := events.NewBus(logger, eventQueueSize, events.NewAuditSink(repo.Audit), events.NewLogSink(logger))
	busCtx, stopBus := context.WithCancel(context.Background())
	bus.Start(busCtx)

	ledgers, err := dial.Clients(logger, cfg)
	if err != nil {
		logger.WithError(err).Fatal("can't dial ledger clients")
	}

	ctx, cancel := context.WithCancel(context.Background())
	registry := validator.NewRegistry(logger, cfg, repo, bus)
	node := validator.NewNode(logger, cfg, repo, ledgers, registry, signer, bus)
	logger.WithField("validator_id", node.ID()).Info("loaded validator identity")
	node.Start(ctx)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Warn("caught termination signal, gracefully terminating")
	cancel()
	stopBus()
	bus.Wait()
}
