// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package avd

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "avdlaunch"

func spanContext(env Env) context.Context {
	if env.Context != nil {
		return env.Context
	}
	return context.Background()
}

func startSpan(env Env, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if env.CorrelationID != "" {
		attrs = append(attrs, attribute.String("correlation_id", env.CorrelationID))
	}
	ctx := spanContext(env)
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// step runs fn under a child span; the Env handed to fn carries that span so
// nested spans and log records attach to it.
func step(env Env, name string, fn func(Env) error, attrs ...attribute.KeyValue) error {
	ctx, span := startSpan(env, name, attrs...)
	defer span.End()
	child := env
	child.Context = ctx
	err := fn(child)
	recordSpanError(span, err)
	return err
}
