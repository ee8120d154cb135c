package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/sirupsen/logrus"

	"github.com/xbridge/bridge-coordinator/config"
	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/logging"
)

// AuditSink appends every event to the audit trail.
type AuditSink struct {
	repo entity.AuditEntriesRepo
}

func NewAuditSink(repo entity.AuditEntriesRepo) *AuditSink {
	return &AuditSink{repo: repo}
}

func (s *AuditSink) Name() string {
	return "audit"
}

func (s *AuditSink) Handle(ctx context.Context, e *Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("can't marshal audit payload: %w", err)
	}
	entry := &entity.AuditEntry{
		Actor:     e.Actor,
		Action:    string(e.Type),
		Payload:   string(payload),
		CreatedAt: e.At,
	}
	if e.TransactionID != "" {
		txID := e.TransactionID
		entry.TransactionID = &txID
	}
	return s.repo.Append(ctx, entry)
}

type LogSink struct {
	logger logging.Logger
}

func NewLogSink(logger logging.Logger) *LogSink {
	return &LogSink{logger: logger.WithField("sink", "log")}
}

func (s *LogSink) Name() string {
	return "log"
}

func (s *LogSink) Handle(_ context.Context, e *Event) error {
	fields := logrus.Fields{
		"type":  e.Type,
		"actor": e.Actor,
	}
	if e.TransactionID != "" {
		fields["tx_id"] = e.TransactionID
	}
	if e.To != "" {
		fields["from"] = e.From
		fields["to"] = e.To
	}
	for k, v := range e.Payload {
		fields[k] = v
	}
	s.logger.WithFields(fields).Info("bridge event")
	return nil
}

// RedisSink publishes events as JSON to a redis channel for external alerting.
type RedisSink struct {
	pool    *redis.Pool
	channel string
}

func timeoutDialOptions() []redis.DialOption {
	return []redis.DialOption{
		redis.DialConnectTimeout(5 * time.Second),
		redis.DialReadTimeout(5 * time.Second),
		redis.DialWriteTimeout(5 * time.Second),
	}
}

func NewRedisPool(cfg *config.RedisConfig) *redis.Pool {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &redis.Pool{
		MaxIdle:     5,
		IdleTimeout: 5 * time.Minute,
		Dial:        func() (redis.Conn, error) { return redis.Dial("tcp", addr, timeoutDialOptions()...) },
	}
}

func NewRedisSink(pool *redis.Pool, channel string) *RedisSink {
	return &RedisSink{pool: pool, channel: channel}
}

func (s *RedisSink) Name() string {
	return "redis"
}

func (s *RedisSink) Handle(ctx context.Context, e *Event) error {
	msg, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("can't marshal event: %w", err)
	}
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("can't get redis connection: %w", err)
	}
	defer conn.Close()

	if _, err = conn.Do("PUBLISH", s.channel, msg); err != nil {
		return fmt.Errorf("can't publish event to redis: %w", err)
	}
	return nil
}
