package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/xbridge/bridge-coordinator/config"
	"github.com/xbridge/bridge-coordinator/db"
	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/logging"
)

type AlertManager struct {
	logger logging.Logger
	jobs   map[string]*Job
}

func NewAlertManager(logger logging.Logger, db *db.DB, cfg *config.Config) (*AlertManager, error) {
	provider := NewDBAlertsProvider(db)
	jobs := make(map[string]*Job, len(cfg.Monitor.Alerts))

	pending := make([]string, len(entity.PendingStatuses))
	for i, status := range entity.PendingStatuses {
		pending[i] = string(status)
	}
	params := &AlertJobParams{
		PendingStatuses: pending,
		StuckThreshold:  cfg.Monitor.StuckThreshold,
		LivenessWindow:  cfg.Registry.LivenessWindow,
		NativeKind:      string(entity.ChainKindNative),
	}

	for name, alertCfg := range cfg.Monitor.Alerts {
		switch name {
		case "stuck_transactions":
			jobs[name] = &Job{
				Interval: time.Minute * 5,
				Timeout:  time.Second * 20,
				Func:     provider.FindStuckTransactions,
				Metric:   AlertStuckTransaction,
			}
		case "unrefunded_failures":
			jobs[name] = &Job{
				Interval: time.Minute * 5,
				Timeout:  time.Second * 20,
				Func:     provider.FindUnrefundedFailures,
				Metric:   AlertUnrefundedFailure,
			}
		case "silent_validators":
			jobs[name] = &Job{
				Interval: time.Minute,
				Timeout:  time.Second * 10,
				Func:     provider.FindSilentValidators,
				Metric:   AlertSilentValidator,
			}
		default:
			return nil, fmt.Errorf("unknown alert type %q", name)
		}
		jobs[name].Params = params
		jobs[name].logger = logger.WithField("alert_job", name)
		if alertCfg != nil {
			if alertCfg.Interval > 0 {
				jobs[name].Interval = alertCfg.Interval
			}
			if alertCfg.Timeout > 0 {
				jobs[name].Timeout = alertCfg.Timeout
			}
		}
	}

	return &AlertManager{
		logger: logger,
		jobs:   jobs,
	}, nil
}

func (m *AlertManager) Start(ctx context.Context) {
	m.logger.WithField("count", len(m.jobs)).Info("starting alert manager jobs")
	for _, job := range m.jobs {
		go job.Start(ctx)
	}
}
