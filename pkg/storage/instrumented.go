// Copyright © 2018 One Concern

package storage

import (
	"context"
	"io"

	"github.com/oneconcern/microkernel/pkg/metrics"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"go.uber.org/zap"
)

// InstrumentOption configures an instrumented store
type InstrumentOption func(*instrumented)

// Tracer for the spans of an instrumented store. Defaults to the global tracer.
func Tracer(tr opentracing.Tracer) InstrumentOption {
	return func(i *instrumented) {
		if tr != nil {
			i.tr = tr
		}
	}
}

// Logger for the debug logs of an instrumented store
func Logger(l *zap.Logger) InstrumentOption {
	return func(i *instrumented) {
		if l != nil {
			i.l = l
		}
	}
}

// Metrics counts the operations of an instrumented store
func Metrics(m *metrics.Metrics) InstrumentOption {
	return func(i *instrumented) {
		i.m = m
	}
}

// Instrument a store with tracing spans, operation counters and debug logs
func Instrument(store Store, opts ...InstrumentOption) Store {
	i := &instrumented{
		store: store,
		tr:    opentracing.GlobalTracer(),
		l:     zap.NewNop(),
	}
	for _, apply := range opts {
		apply(i)
	}
	i.l = i.l.With(zap.String("storage", store.String()))
	return i
}

type instrumented struct {
	store Store
	tr    opentracing.Tracer
	l     *zap.Logger
	m     *metrics.Metrics
}

// observe wraps a single storage operation
func (i *instrumented) observe(ctx context.Context, op, key string, fn func() error) error {
	var opts []opentracing.StartSpanOption
	if parent := opentracing.SpanFromContext(ctx); parent != nil {
		opts = append(opts, opentracing.ChildOf(parent.Context()))
	}
	span := i.tr.StartSpan("storage."+op, opts...)
	span.SetTag("storage", i.store.String())
	if key != "" {
		span.SetTag("key", key)
	}
	defer span.Finish()

	err := fn()
	i.m.StorageOp(op, err)
	if err != nil {
		ext.Error.Set(span, true)
		span.LogKV("error", err.Error())
		i.l.Debug("storage operation failed", zap.String("op", op), zap.String("key", key), zap.Error(err))
		return err
	}
	i.l.Debug("storage operation", zap.String("op", op), zap.String("key", key))
	return nil
}

func (i *instrumented) Has(ctx context.Context, key string) (exists bool, err error) {
	err = i.observe(ctx, "has", key, func() (e error) {
		exists, e = i.store.Has(ctx, key)
		return
	})
	return
}

func (i *instrumented) Get(ctx context.Context, key string) (rdr io.ReadCloser, err error) {
	err = i.observe(ctx, "get", key, func() (e error) {
		rdr, e = i.store.Get(ctx, key)
		return
	})
	return
}

func (i *instrumented) GetAt(ctx context.Context, key string) (rdr io.ReaderAt, err error) {
	err = i.observe(ctx, "get_at", key, func() (e error) {
		rdr, e = i.store.GetAt(ctx, key)
		return
	})
	return
}

func (i *instrumented) GetAttr(ctx context.Context, key string) (attrs Attributes, err error) {
	err = i.observe(ctx, "get_attr", key, func() (e error) {
		attrs, e = i.store.GetAttr(ctx, key)
		return
	})
	return
}

func (i *instrumented) Put(ctx context.Context, key string, rdr io.Reader, exclusive bool) error {
	return i.observe(ctx, "put", key, func() error {
		return i.store.Put(ctx, key, rdr, exclusive)
	})
}

func (i *instrumented) Delete(ctx context.Context, key string) error {
	return i.observe(ctx, "delete", key, func() error {
		return i.store.Delete(ctx, key)
	})
}

func (i *instrumented) Keys(ctx context.Context) (keys []string, err error) {
	err = i.observe(ctx, "keys", "", func() (e error) {
		keys, e = i.store.Keys(ctx)
		return
	})
	return
}

func (i *instrumented) Clear(ctx context.Context) error {
	return i.observe(ctx, "clear", "", func() error {
		return i.store.Clear(ctx)
	})
}

func (i *instrumented) String() string {
	return i.store.String()
}
