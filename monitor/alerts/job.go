package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/xbridge/bridge-coordinator/logging"
)

type AlertJobParams struct {
	PendingStatuses []string
	StuckThreshold  time.Duration
	LivenessWindow  time.Duration
	NativeKind      string
}

type AlertMetricValues map[string]string

const ValueLabelTag = "_value"

func (v AlertMetricValues) Labels() prometheus.Labels {
	labels := make(prometheus.Labels, len(v))
	for k, val := range v {
		if k != ValueLabelTag {
			labels[k] = val
		}
	}
	return labels
}

func (v AlertMetricValues) Value() float64 {
	val, ok := v[ValueLabelTag]
	if !ok {
		return 0
	}
	res, _ := strconv.ParseFloat(val, 64)
	return res
}

func ConvertToAlertMetricValues(v interface{}) ([]AlertMetricValues, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("can't marshal alert values to json: %w", err)
	}
	var res []AlertMetricValues
	err = json.Unmarshal(raw, &res)
	if err != nil {
		return nil, fmt.Errorf("can't unmarshal alert values to []AlertMetricValues: %w", err)
	}
	return res, nil
}

type Job struct {
	logger   logging.Logger
	Metric   *prometheus.GaugeVec
	Interval time.Duration
	Timeout  time.Duration
	Func     func(ctx context.Context, params *AlertJobParams) (interface{}, error)
	Params   *AlertJobParams
}

// RunOnce replaces the metric series with the alerts found by a single query.
func (j *Job) RunOnce(ctx context.Context) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, j.Timeout)
	defer cancel()
	start := time.Now()
	alerts, err := j.Func(timeoutCtx, j.Params)
	if err != nil {
		return fmt.Errorf("failed to process alert job: %w", err)
	}
	values, err := ConvertToAlertMetricValues(alerts)
	if err != nil {
		return err
	}
	j.Metric.Reset()
	if len(values) == 0 {
		j.logger.WithField("duration", time.Since(start)).Info("no alerts has been found")
		return nil
	}
	j.logger.WithFields(logrus.Fields{
		"count":    len(values),
		"duration": time.Since(start),
	}).Warn("found some possible alerts")
	for _, v := range values {
		j.Metric.With(v.Labels()).Set(v.Value())
	}
	return nil
}

func (j *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()
	for {
		if err := j.RunOnce(ctx); err != nil {
			j.logger.WithError(err).Error("alert job iteration failed")
		}
		select {
		case <-ticker.C:
			continue
		case <-ctx.Done():
			return
		}
	}
}
