package event

import (
	"context"
	"errors"
)

// Sink observes events after the commit that stamped them. A Sink error
// never undoes the operation.
type Sink interface {
	Record(ctx context.Context, events ...Event) error
}

// Journal stamps and durably stores events.
type Journal interface {
	Append(ctx context.Context, events ...Event) ([]Event, error)
}

// Reader lists stamped events.
type Reader interface {
	// List returns up to limit events with Seq > afterSeq. A blank
	// instanceID lists every instance; limit <= 0 means no limit.
	List(ctx context.Context, instanceID string, afterSeq uint64, limit int) ([]Event, error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, events ...Event) error

// Record implements Sink.
func (f SinkFunc) Record(ctx context.Context, events ...Event) error {
	return f(ctx, events...)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, ...Event) error { return nil })

// Recorder forwards committed events to every observer. Failures are
// logged and joined, never retried.
type Recorder struct {
	observers []Sink
	logf      func(string, ...any)
}

// NewRecorder builds a Recorder over observers. Nil observers are skipped.
func NewRecorder(logf func(string, ...any), observers ...Sink) *Recorder {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Recorder{observers: observers, logf: logf}
}

// Record implements Sink.
func (r *Recorder) Record(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var errs []error
	for _, observer := range r.observers {
		if observer == nil {
			continue
		}
		if err := observer.Record(ctx, events...); err != nil {
			r.logf("observe %d events: %v", len(events), err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
