package events

import (
	"context"
	"sync"
)

// Recorder is a synchronous Publisher that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []*Event
}

func (r *Recorder) Publish(_ context.Context, e *Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Event(nil), r.events...)
}

// Types lists the recorded event types in publish order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]Type, len(r.events))
	for i, e := range r.events {
		res[i] = e.Type
	}
	return res
}

func (r *Recorder) Count(t Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (r *Recorder) Name() string {
	return "recorder"
}

func (r *Recorder) Handle(ctx context.Context, e *Event) error {
	r.Publish(ctx, e)
	return nil
}
