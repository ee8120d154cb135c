package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xbridge/bridge-coordinator/bridge"
	"github.com/xbridge/bridge-coordinator/config"
	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/events"
	"github.com/xbridge/bridge-coordinator/logging"
	"github.com/xbridge/bridge-coordinator/monitor/alerts"
	"github.com/xbridge/bridge-coordinator/repository"
	"github.com/xbridge/bridge-coordinator/utils"
)

const (
	actorMonitor   = "monitor"
	scanBatchSize  = 100
	expiredMessage = "expired"
)

// Operator is the subset of the orchestrator the monitor may invoke.
type Operator interface {
	Retry(ctx context.Context, id, actor string) error
	Refund(ctx context.Context, id, actor string) error
}

type LivenessReporter interface {
	LiveCount(ctx context.Context) (uint, error)
	Required() uint
}

type Monitor struct {
	logger       logging.Logger
	cfg          *config.Config
	repo         *repository.Repo
	operator     Operator
	registry     LivenessReporter
	events       events.Publisher
	alertManager *alerts.AlertManager

	mu     sync.RWMutex
	health *HealthReport
	stuck  map[string]bool
}

func NewMonitor(logger logging.Logger, cfg *config.Config, repo *repository.Repo, operator Operator, registry LivenessReporter, publisher events.Publisher, alertManager *alerts.AlertManager) *Monitor {
	return &Monitor{
		logger:       logger.WithField("service", "monitor"),
		cfg:          cfg,
		repo:         repo,
		operator:     operator,
		registry:     registry,
		events:       publisher,
		alertManager: alertManager,
		stuck:        make(map[string]bool),
	}
}

func (m *Monitor) Start(ctx context.Context) {
	m.logger.Info("starting bridge monitor")
	if m.alertManager != nil {
		m.alertManager.Start(ctx)
	}
	for {
		m.RunOnce(ctx)
		if utils.ContextSleep(ctx, m.cfg.Monitor.Interval) == nil {
			return
		}
	}
}

// RunOnce performs every monitor duty once. Failures are logged and do not stop later duties.
func (m *Monitor) RunOnce(ctx context.Context) {
	if _, err := m.ExpireTransactions(ctx); err != nil {
		m.logger.WithError(err).Error("failed to expire transactions")
	}
	stuck, err := m.DetectStuck(ctx)
	if err != nil {
		m.logger.WithError(err).Error("failed to detect stuck transactions")
	}
	if m.cfg.Monitor.AutoRetry {
		m.retryStuck(ctx, stuck)
	}
	if m.cfg.Monitor.AutoRefund {
		if err = m.RefundFailed(ctx); err != nil {
			m.logger.WithError(err).Error("failed to refund failed transactions")
		}
	}
	if _, err = m.CheckHealth(ctx); err != nil {
		m.logger.WithError(err).Error("failed to check bridge health")
	}
}

// ExpireTransactions force-fails non-terminal records past their validity window.
// A submission in flight is left to the relayer, which still owns its outcome.
func (m *Monitor) ExpireTransactions(ctx context.Context) (int, error) {
	now := time.Now()
	deadline := now.Add(-m.cfg.Bridge.ValidityWindow)
	txs, err := m.repo.Transactions.FindPending(ctx, entity.PendingStatuses, &deadline, scanBatchSize)
	if err != nil {
		return 0, fmt.Errorf("can't find expired transactions: %w", err)
	}
	expired := 0
	for _, tx := range txs {
		logger := m.logger.WithFields(logrus.Fields{
			"tx_id":  tx.ID,
			"status": tx.Status,
		})
		if tx.Claimed(now) || tx.DestinationTxHash != nil {
			logger.Warn("expired transaction has a submission in flight, skipping")
			continue
		}
		msg := expiredMessage
		ok, err := m.repo.Transactions.UpdateStatus(ctx, tx.ID, tx.Status, entity.StatusFailed, &entity.StatusUpdate{ErrorMessage: &msg})
		if err != nil {
			logger.WithError(err).Error("failed to expire transaction")
			continue
		}
		if !ok {
			continue
		}
		expired++
		ExpiredTransactions.Inc()
		logger.Warn("transaction expired")
		m.events.Publish(ctx, events.New(events.TransactionExpired, actorMonitor, tx.ID).
			Transition(tx.Status, entity.StatusFailed).
			With("created_at", tx.CreatedAt))
	}
	return expired, nil
}

// DetectStuck returns non-terminal records older than the stuck threshold and reports
// each one once while it stays stuck.
func (m *Monitor) DetectStuck(ctx context.Context) ([]*entity.BridgeTransaction, error) {
	threshold := time.Now().Add(-m.cfg.Monitor.StuckThreshold)
	txs, err := m.repo.Transactions.FindPending(ctx, entity.PendingStatuses, &threshold, scanBatchSize)
	if err != nil {
		return nil, fmt.Errorf("can't find stuck transactions: %w", err)
	}
	StuckTransactions.Set(float64(len(txs)))

	m.mu.Lock()
	seen := make(map[string]bool, len(txs))
	var fresh []*entity.BridgeTransaction
	for _, tx := range txs {
		seen[tx.ID] = true
		if !m.stuck[tx.ID] {
			fresh = append(fresh, tx)
		}
	}
	m.stuck = seen
	m.mu.Unlock()

	for _, tx := range fresh {
		m.logger.WithFields(logrus.Fields{
			"tx_id":       tx.ID,
			"status":      tx.Status,
			"retry_count": tx.RetryCount,
			"age":         time.Since(tx.CreatedAt).String(),
		}).Warn("transaction is stuck")
		m.events.Publish(ctx, events.New(events.StuckDetected, actorMonitor, tx.ID).
			With("status", tx.Status).
			With("retry_count", tx.RetryCount))
	}
	return txs, nil
}

func (m *Monitor) retryStuck(ctx context.Context, txs []*entity.BridgeTransaction) {
	for _, tx := range txs {
		if tx.Status != entity.StatusValidating && tx.Status != entity.StatusMinting {
			continue
		}
		if tx.RetryCount >= m.cfg.Bridge.MaxRetries || tx.Claimed(time.Now()) {
			continue
		}
		err := m.operator.Retry(ctx, tx.ID, actorMonitor)
		switch {
		case err == nil:
			AutomaticActions.WithLabelValues("retry", "ok").Inc()
		case errors.Is(err, bridge.ErrNotRetryable), errors.Is(err, bridge.ErrExpired):
			AutomaticActions.WithLabelValues("retry", "skipped").Inc()
		default:
			AutomaticActions.WithLabelValues("retry", "error").Inc()
			m.logger.WithError(err).WithField("tx_id", tx.ID).Error("automatic retry failed")
		}
	}
}

// RefundFailed refunds every failed inbound transfer that still holds locked funds.
func (m *Monitor) RefundFailed(ctx context.Context) error {
	txs, err := m.repo.Transactions.FindRefundable(ctx, scanBatchSize)
	if err != nil {
		return fmt.Errorf("can't find refundable transactions: %w", err)
	}
	for _, tx := range txs {
		if err = m.operator.Refund(ctx, tx.ID, actorMonitor); err != nil {
			AutomaticActions.WithLabelValues("refund", "error").Inc()
			m.logger.WithError(err).WithField("tx_id", tx.ID).Error("automatic refund failed")
			continue
		}
		AutomaticActions.WithLabelValues("refund", "ok").Inc()
	}
	return nil
}

// CheckHealth classifies the bridge from recent failures and validator quorum.
func (m *Monitor) CheckHealth(ctx context.Context) (*HealthReport, error) {
	now := time.Now().UTC()
	since := now.Add(-m.cfg.Monitor.HealthWindow)
	stats, err := m.repo.Transactions.Statistics(ctx, &since)
	if err != nil {
		return nil, fmt.Errorf("can't get statistics: %w", err)
	}
	live, err := m.registry.LiveCount(ctx)
	if err != nil {
		return nil, err
	}
	report := &HealthReport{
		Total:          stats.Total.Count,
		Failed:         stats.Count(entity.StatusFailed) + stats.Count(entity.StatusRefunded),
		LiveValidators: live,
		Quorum:         live >= m.registry.Required(),
		CheckedAt:      now,
	}
	if report.Total > 0 {
		report.FailureRatio = float64(report.Failed) / float64(report.Total)
	}
	report.Status = classify(report.FailureRatio, report.Quorum, m.cfg.Monitor.DegradedFailureRatio, m.cfg.Monitor.CriticalFailureRatio)
	HealthStatus.Set(report.Status.gaugeValue())
	FailureRatio.Set(report.FailureRatio)

	m.mu.Lock()
	previous := m.health
	m.health = report
	report.Stuck = len(m.stuck)
	m.mu.Unlock()

	if previous == nil || previous.Status != report.Status {
		m.logger.WithFields(logrus.Fields{
			"status":          report.Status,
			"failure_ratio":   report.FailureRatio,
			"live_validators": live,
		}).Info("bridge health changed")
		e := events.New(events.HealthChanged, actorMonitor, "").
			With("status", report.Status).
			With("failure_ratio", report.FailureRatio).
			With("live_validators", live)
		if previous != nil {
			e.With("previous", previous.Status)
		}
		m.events.Publish(ctx, e)
	}
	return report, nil
}

// Health returns the latest report, or nil before the first check.
func (m *Monitor) Health() *HealthReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.health == nil {
		return nil
	}
	cp := *m.health
	return &cp
}
