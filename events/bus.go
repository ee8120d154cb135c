package events

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xbridge/bridge-coordinator/logging"
)

const sinkTimeout = 10 * time.Second

// Bus decouples producers from sinks through a buffered channel. Publish blocks only
// while the buffer is full, so a slow sink applies backpressure instead of losing audit records.
type Bus struct {
	logger logging.Logger
	queue  chan *Event
	sinks  []Sink
	wg     sync.WaitGroup
}

func NewBus(logger logging.Logger, size int, sinks ...Sink) *Bus {
	return &Bus{
		logger: logger.WithField("service", "events"),
		queue:  make(chan *Event, size),
		sinks:  sinks,
	}
}

func (b *Bus) Publish(ctx context.Context, e *Event) {
	select {
	case b.queue <- e:
		PublishedEvents.WithLabelValues(string(e.Type)).Inc()
		return
	default:
	}
	select {
	case b.queue <- e:
		PublishedEvents.WithLabelValues(string(e.Type)).Inc()
	case <-ctx.Done():
		DroppedEvents.WithLabelValues(string(e.Type)).Inc()
		b.logger.WithFields(logrus.Fields{
			"type":  e.Type,
			"tx_id": e.TransactionID,
		}).Error("event dropped, queue is full and context is done")
	}
}

// Start delivers events until ctx is cancelled, then drains what is already queued.
func (b *Bus) Start(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case e := <-b.queue:
				b.dispatch(e)
			case <-ctx.Done():
				b.drain()
				return
			}
		}
	}()
}

// Wait blocks until the delivery loop has drained and stopped.
func (b *Bus) Wait() {
	b.wg.Wait()
}

func (b *Bus) drain() {
	for {
		select {
		case e := <-b.queue:
			b.dispatch(e)
		default:
			return
		}
	}
}

func (b *Bus) dispatch(e *Event) {
	for _, sink := range b.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		err := sink.Handle(ctx, e)
		cancel()
		if err != nil {
			SinkErrors.WithLabelValues(sink.Name()).Inc()
			b.logger.WithError(err).WithFields(logrus.Fields{
				"sink":  sink.Name(),
				"type":  e.Type,
				"tx_id": e.TransactionID,
			}).Error("failed to deliver event")
		}
	}
}
