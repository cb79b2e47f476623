package alpine

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/rbaliyan/alpine/monitor"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// post is the state of one Post call shared by the bus and its parents.
type post struct {
	id        string
	event     any
	eventType reflect.Type
	visited   map[*Bus]bool
	cancelled bool
}

func (p *post) stopped() bool {
	if !p.cancelled && isCancelled(p.event) {
		p.cancelled = true
	}
	return p.cancelled
}

// Post delivers event to every matching listener, then to the parent buses.
//
// Listeners run on the calling goroutine in (priority, registration) order.
// A filter returning false skips its listener. When the event is
// Cancellable and reports cancelled, no further listener runs on this bus
// or any parent; Post still returns nil.
//
// Under FailFast the first listener failure stops dispatch and is returned
// as a *ListenerInvocationError. Under ReportAndContinue failures go to the
// error handler and Post returns nil.
//
// ctx is handed to listeners; Post does not stop when it is done.
func (b *Bus) Post(ctx context.Context, event any) error {
	if isNil(event) {
		return ErrNilEvent
	}
	if ctx == nil {
		ctx = context.Background()
	}
	p := &post{
		id:        NewID(),
		event:     event,
		eventType: reflect.TypeOf(event),
		visited:   make(map[*Bus]bool),
	}
	return b.dispatch(ctx, p)
}

// Post posts event on b and returns it, so the caller can inspect its state
// after dispatch.
//
//	ev, err := alpine.Post(ctx, bus, &Shutdown{})
//	if err == nil && ev.IsCancelled() {
//	    // a listener vetoed the shutdown
//	}
func Post[T any](ctx context.Context, b *Bus, event T) (T, error) {
	return event, b.Post(ctx, event)
}

func (b *Bus) dispatch(ctx context.Context, p *post) (err error) {
	if p.visited[b] {
		return nil
	}
	p.visited[b] = true

	eventType := p.eventType.String()
	attrs := eventAttrs(b.name, eventType)
	start := time.Now()
	b.metrics.posted.Add(ctx, 1, attrs)

	if b.tracingEnabled {
		var span trace.Span
		ctx, span = b.tracer.Start(ctx, b.name+".post",
			trace.WithAttributes(
				attribute.String(spanKeyEventID, p.id),
				attribute.String(spanKeyEventType, eventType),
				attribute.String(spanKeyEventBus, b.name)),
			trace.WithSpanKind(trace.SpanKindInternal))
		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}()
	}
	defer b.metrics.observe(ctx, start, attrs)

	ctx = contextWithPost(ctx, p.id, b)

	targets := b.index.load().resolve(p.eventType, b.superListeners, b.graph)
	if len(targets) == 0 {
		b.logger.Debug("no listeners", "event", eventType, "event.id", p.id)
	}

	for _, t := range targets {
		if p.stopped() {
			b.metrics.cancelled.Add(ctx, 1, attrs)
			return nil
		}
		if ierr := b.deliver(ctx, p, t, attrs); ierr != nil {
			b.metrics.failed.Add(ctx, 1, attrs)
			if b.tracingEnabled {
				trace.SpanFromContext(ctx).AddEvent("listener.failed", trace.WithAttributes(
					attribute.String(spanKeyListener, ierr.Listener),
					attribute.String("error", ierr.Error())))
			}
			if b.errorPolicy == FailFast {
				return ierr
			}
			b.errorHandler(ctx, ierr)
		}
	}

	for _, parent := range *b.parents.Load() {
		if p.stopped() {
			b.metrics.cancelled.Add(ctx, 1, attrs)
			return nil
		}
		if err := parent.dispatch(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// deliver runs one target: conversion, filters, limiter, then the listener.
// The returned error is nil or a *ListenerInvocationError.
func (b *Bus) deliver(ctx context.Context, p *post, t target, attrs metric.MeasurementOption) (ierr *ListenerInvocationError) {
	rec := t.rec
	ctx = contextWithListener(ctx, rec)

	var done func(monitor.Status, error)
	entry := func() *monitor.Entry {
		return &monitor.Entry{
			EventID:   p.id,
			Order:     rec.seq,
			Listener:  rec.name,
			EventType: p.eventType.String(),
			BusID:     b.id,
			BusName:   b.name,
		}
	}

	if b.recoveryEnabled {
		defer func() {
			if r := recover(); r != nil {
				ierr = b.invocationError(p, rec, nil)
				ierr.Panic = r
				ierr.Err = fmt.Errorf("panic: %v", r)
				ierr.Stack = string(debug.Stack())
				if done != nil {
					done(monitor.StatusFailed, ierr.Err)
				}
			}
		}()
	}

	ev := p.event
	if t.convert != nil {
		ev = t.convert(ev)
	}

	if !rec.accepts(ev) {
		b.metrics.filtered.Add(ctx, 1, attrs)
		if b.monitor != nil {
			monitor.Note(ctx, b.monitor, entry(), monitor.StatusFiltered, b.logger)
		}
		return nil
	}

	if rec.limiter != nil {
		if rec.throttle {
			if err := rec.limiter.Wait(ctx); err != nil {
				werr := fmt.Errorf("throttle: %w", err)
				if b.monitor != nil {
					monitor.Begin(ctx, b.monitor, entry(), b.logger)(monitor.StatusFailed, werr)
				}
				return b.invocationError(p, rec, werr)
			}
		} else if !rec.limiter.Allow(ctx) {
			b.metrics.skipped.Add(ctx, 1, attrs)
			if b.monitor != nil {
				monitor.Note(ctx, b.monitor, entry(), monitor.StatusSkipped, b.logger)
			}
			return nil
		}
	}

	if b.monitor != nil {
		done = monitor.Begin(ctx, b.monitor, entry(), b.logger)
	}

	err := rec.invoke(ctx, ev)
	if done != nil {
		done(monitor.StatusFromError(err), err)
	}
	if t.convert != nil && isCancelled(ev) {
		p.cancelled = true
	}
	if err != nil {
		return b.invocationError(p, rec, err)
	}

	b.metrics.delivered.Add(ctx, 1, attrs)
	return nil
}

func (b *Bus) invocationError(p *post, rec *record, err error) *ListenerInvocationError {
	return &ListenerInvocationError{
		Bus:       b.name,
		EventType: p.eventType.String(),
		Listener:  rec.name,
		Event:     p.event,
		Err:       err,
	}
}
