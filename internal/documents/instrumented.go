package documents

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Observer records store call outcomes, typically *observability.Metrics.
type Observer interface {
	ObserveDocumentOp(op string, err error, d time.Duration)
}

type instrumentedStore struct {
	inner    Store
	observer Observer
	backend  string
	tracer   trace.Tracer
}

// Instrument wraps a store with a span and an Observer call per operation.
func Instrument(inner Store, backend string, observer Observer) Store {
	return &instrumentedStore{
		inner:    inner,
		observer: observer,
		backend:  backend,
		tracer:   otel.Tracer("github.com/ent0n29/katibim/internal/documents"),
	}
}

func (s *instrumentedStore) start(ctx context.Context, op string) (context.Context, trace.Span, time.Time) {
	ctx, span := s.tracer.Start(ctx, "documents."+op,
		trace.WithAttributes(attribute.String("store.backend", s.backend)))
	return ctx, span, time.Now()
}

func (s *instrumentedStore) finish(span trace.Span, op string, started time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	if s.observer != nil {
		s.observer.ObserveDocumentOp(op, err, time.Since(started))
	}
}

func (s *instrumentedStore) List(ctx context.Context) (out []Record, err error) {
	ctx, span, started := s.start(ctx, "list")
	defer func() {
		span.SetAttributes(attribute.Int("documents.count", len(out)))
		s.finish(span, "list", started, err)
	}()
	return s.inner.List(ctx)
}

func (s *instrumentedStore) Insert(ctx context.Context, title, content string) (r Record, err error) {
	ctx, span, started := s.start(ctx, "insert")
	defer func() { s.finish(span, "insert", started, err) }()
	return s.inner.Insert(ctx, title, content)
}

func (s *instrumentedStore) Update(ctx context.Context, id int64, content string) (r Record, err error) {
	ctx, span, started := s.start(ctx, "update")
	span.SetAttributes(attribute.Int64("documents.id", id))
	defer func() { s.finish(span, "update", started, err) }()
	return s.inner.Update(ctx, id, content)
}

func (s *instrumentedStore) Delete(ctx context.Context, id int64) (err error) {
	ctx, span, started := s.start(ctx, "delete")
	span.SetAttributes(attribute.Int64("documents.id", id))
	defer func() { s.finish(span, "delete", started, err) }()
	return s.inner.Delete(ctx, id)
}

func (s *instrumentedStore) Close() error { return s.inner.Close() }
