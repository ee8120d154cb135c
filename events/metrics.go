package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PublishedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Events accepted by the event bus.",
	}, []string{"type"})
	DroppedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "events",
		Name:      "dropped_total",
		Help:      "Events dropped because the producer gave up waiting for queue space.",
	}, []string{"type"})
	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "events",
		Name:      "sink_errors_total",
		Help:      "Event deliveries that failed in a sink.",
	}, []string{"sink"})
)
