package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xbridge/bridge-coordinator/bridge"
	"github.com/xbridge/bridge-coordinator/config"
	"github.com/xbridge/bridge-coordinator/db"
	"github.com/xbridge/bridge-coordinator/events"
	"github.com/xbridge/bridge-coordinator/fee"
	"github.com/xbridge/bridge-coordinator/ledger/dial"
	"github.com/xbridge/bridge-coordinator/logging"
	"github.com/xbridge/bridge-coordinator/monitor"
	"github.com/xbridge/bridge-coordinator/monitor/alerts"
	"github.com/xbridge/bridge-coordinator/presenter"
	"github.com/xbridge/bridge-coordinator/relayer"
	"github.com/xbridge/bridge-coordinator/repository"
	"github.com/xbridge/bridge-coordinator/validator"
)

const eventQueueSize = 1024

func main() {
	logger := logging.New()

	cfg, err := config.ReadConfigFromFile("config.yml")
	if err != nil {
		logger.WithError(err).Fatal("can't read config")
	}
	logger.SetLevel(cfg.LogLevel)

	dbConn, err := db.ConnectToDBAndMigrate(cfg.DBConfig)
	if err != nil {
		logger.WithError(err).Fatal("can't connect to database and apply migrations")
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

	sinks := []events.Sink{events.NewAuditSink(repo.Audit), events.NewLogSink(logger)}
	if cfg.Redis != nil {
		pool := events.NewRedisPool(cfg.Redis)
		defer pool.Close()
		sinks = append(sinks, events.NewRedisSink(pool, cfg.Redis.Channel))
	}
	bus := events.NewBus(logger, eventQueueSize, sinks...)
	busCtx, stopBus := context.WithCancel(context.Background())
	bus.Start(busCtx)

	ledgers, err := dial.Clients(logger, cfg)
	if err != nil {
		logger.WithError(err).Fatal("can't dial ledger clients")
	}

	ctx, cancel := context.WithCancel(context.Background())

	registry := validator.NewRegistry(logger, cfg, repo, bus)
	if err = registry.Seed(ctx); err != nil {
		logger.WithError(err).Fatal("can't seed validator registry")
	}

	rel := relayer.NewRelayer(logger, cfg, repo, ledgers, registry, bus)
	orchestrator := bridge.NewOrchestrator(logger, cfg, repo, fee.NewCalculatorFromConfig(cfg.Chains), ledgers, registry, rel, bus)

	alertManager, err := alerts.NewAlertManager(logger, dbConn, cfg)
	if err != nil {
		logger.WithError(err).Fatal("can't initialize alert manager")
	}
	mon := monitor.NewMonitor(logger, cfg, repo, orchestrator, registry, bus, alertManager)

	if cfg.Presenter != nil {
		pr := presenter.NewPresenter(logger, cfg, orchestrator, mon, registry)
		go func() {
			err := pr.Serve(cfg.Presenter.Host)
			if err != nil {
				logger.WithError(err).Fatal("can't serve presenter")
			}
		}()
	}

	go rel.Start(ctx)
	go mon.Start(ctx)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Warn("caught termination signal, gracefully terminating")
	cancel()
	stopBus()
	bus.Wait()
}
