package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"github.com/xbridge/bridge-coordinator/bridge"
	"github.com/xbridge/bridge-coordinator/config"
	"github.com/xbridge/bridge-coordinator/db"
	"github.com/xbridge/bridge-coordinator/events"
	"github.com/xbridge/bridge-coordinator/fee"
	"github.com/xbridge/bridge-coordinator/ledger/dial"
	"github.com/xbridge/bridge-coordinator/logging"
	"github.com/xbridge/bridge-coordinator/relayer"
	"github.com/xbridge/bridge-coordinator/repository"
	"github.com/xbridge/bridge-coordinator/validator"
)

const (
	actionRetry           = "retry"
	actionRefund          = "refund"
	actionCancel          = "cancel"
	actionAddValidator    = "add-validator"
	actionRemoveValidator = "remove-validator"
)

var (
	action      = flag.String("action", "", "one of retry, refund, cancel, add-validator, remove-validator")
	txID        = flag.String("tx", "", "transaction id for retry, refund and cancel")
	validatorID = flag.String("validator", "", "validator address for add-validator and remove-validator")
	actor       = flag.String("actor", "admin", "operator name recorded in the audit log")
)

func main() {
	flag.Parse()

	logger := logging.New()

	cfg, err := config.ReadConfigFromFile("config.yml")
	if err != nil {
		logger.WithError(err).Fatal("can't read config")
	}
	logger.SetLevel(cfg.LogLevel)

	switch *action {
	case actionRetry, actionRefund, actionCancel:
		if *txID == "" {
			logger.Fatalf("--tx is required for %s", *action)
		}
	case actionAddValidator, actionRemoveValidator:
		if *validatorID == "" {
			logger.Fatalf("--validator is required for %s", *action)
		}
	default:
		logger.WithField("action", *action).Fatal("unknown action")
	}
	if *actor == "" {
		logger.Fatal("actor is not specified")
	}

	dbConn, err := db.NewDB(cfg.DBConfig)
	if err != nil {
		logger.WithError(err).Fatal("can't connect to database")
	}
	defer dbConn.Close()

	if err = dbConn.Migrate(); err != nil {
		logger.WithError(err).Fatal("can't run database migrations")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		<-c
		logger.Warn("caught CTRL-C, gracefully terminating")
		cancel()
	}()

	repo := repository.NewRepo(dbConn)
	bus := events.NewBus(logger, 64, events.NewAuditSink(repo.Audit), events.NewLogSink(logger))
	busCtx, stopBus := context.WithCancel(context.Background())
	bus.Start(busCtx)
	defer func() {
		stopBus()
		bus.Wait()
	}()

	registry := validator.NewRegistry(logger, cfg, repo, bus)

	logger = logger.WithFields(logrus.Fields{
		"action": *action,
		"actor":  *actor,
	})
	switch *action {
	case actionAddValidator:
		err = registry.Add(ctx, *validatorID, *actor)
	case actionRemoveValidator:
		err = registry.Remove(ctx, *validatorID, *actor)
	default:
		var orchestrator *bridge.Orchestrator
		orchestrator, err = newOrchestrator(logger, cfg, repo, registry, bus)
		if err != nil {
			logger.WithError(err).Fatal("can't initialize orchestrator")
		}
		logger = logger.WithField("tx_id", *txID)
		switch *action {
		case actionRetry:
			err = orchestrator.Retry(ctx, *txID, *actor)
		case actionRefund:
			err = orchestrator.Refund(ctx, *txID, *actor)
		case actionCancel:
			err = orchestrator.Cancel(ctx, *txID, *actor)
		}
	}
	if err != nil {
		logger.WithError(err).Error("admin action failed")
		stopBus()
		bus.Wait()
		os.Exit(1)
	}
	logger.Info("admin action completed")
}

func newOrchestrator(logger logging.Logger, cfg *config.Config, repo *repository.Repo, registry *validator.Registry, bus *events.Bus) (*bridge.Orchestrator, error) {
	ledgers, err := dial.Clients(logger, cfg)
	if err != nil {
		return nil, err
	}
	rel := relayer.NewRelayer(logger, cfg, repo, ledgers, registry, bus)
	return bridge.NewOrchestrator(logger, cfg, repo, fee.NewCalculatorFromConfig(cfg.Chains), ledgers, registry, rel, bus), nil
}
