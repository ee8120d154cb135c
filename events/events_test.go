package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/require"

	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/events"
	"github.com/xbridge/bridge-coordinator/logging"
	"github.com/xbridge/bridge-coordinator/repository/memory"
)

type failingSink struct{}

func (failingSink) Name() string { return "failing" }

func (failingSink) Handle(context.Context, *events.Event) error { return errors.New("boom") }

func TestBus_DeliversToAllSinks(t *testing.T) {
	t.Parallel()

	rec := new(events.Recorder)
	repo := memory.NewRepo()
	bus := events.NewBus(logging.NewNop(), 4, failingSink{}, rec, events.NewAuditSink(repo.Audit))

	ctx, cancel := context.WithCancel(context.Background())
	bus.Start(ctx)
	for i := 0; i < 10; i++ {
		bus.Publish(ctx, events.New(events.Signed, "validator", "tx-1").With("n", i))
	}
	cancel()
	bus.Wait()

	require.Equal(t, 10, rec.Count(events.Signed))
	entries, err := repo.Audit.FindByTransactionID(context.Background(), "tx-1")
	require.NoError(t, err)
	require.Len(t, entries, 10)
	require.Equal(t, string(events.Signed), entries[0].Action)
	require.Equal(t, "validator", entries[0].Actor)
}

func TestBus_PublishGivesUpWhenContextDone(t *testing.T) {
	t.Parallel()

	bus := events.NewBus(logging.NewNop(), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		bus.Publish(ctx, events.New(events.Signed, "a", "1"))
		bus.Publish(ctx, events.New(events.Signed, "a", "2"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a cancelled context")
	}
}

func TestAuditSink_Payload(t *testing.T) {
	t.Parallel()

	repo := memory.NewRepo()
	sink := events.NewAuditSink(repo.Audit)
	e := events.New(events.TransactionRefunded, "operator", "tx-2").
		Transition(entity.StatusFailed, entity.StatusRefunded).
		With("release_tx_hash", "0xabc")
	require.NoError(t, sink.Handle(context.Background(), e))

	entries, err := repo.Audit.FindByTransactionID(context.Background(), "tx-2")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var decoded events.Event
	require.NoError(t, json.Unmarshal([]byte(entries[0].Payload), &decoded))
	require.Equal(t, entity.StatusFailed, decoded.From)
	require.Equal(t, entity.StatusRefunded, decoded.To)
	require.Equal(t, "0xabc", decoded.Payload["release_tx_hash"])
}

type fakeConn struct {
	redis.Conn
	commands [][]interface{}
}

func (c *fakeConn) Do(cmd string, args ...interface{}) (interface{}, error) {
	if cmd == "" {
		return nil, nil
	}
	c.commands = append(c.commands, append([]interface{}{cmd}, args...))
	return int64(1), nil
}

func (c *fakeConn) Err() error { return nil }

func (c *fakeConn) Close() error { return nil }

func TestRedisSink_Publishes(t *testing.T) {
	t.Parallel()

	conn := new(fakeConn)
	pool := &redis.Pool{Dial: func() (redis.Conn, error) { return conn, nil }}
	sink := events.NewRedisSink(pool, "bridge:events")

	require.NoError(t, sink.Handle(context.Background(), events.New(events.BridgeCompleted, "relayer", "tx-3")))
	require.Len(t, conn.commands, 1)
	require.Equal(t, "PUBLISH", conn.commands[0][0])
	require.Equal(t, "bridge:events", conn.commands[0][1])

	var decoded events.Event
	require.NoError(t, json.Unmarshal(conn.commands[0][2].([]byte), &decoded))
	require.Equal(t, events.BridgeCompleted, decoded.Type)
}
