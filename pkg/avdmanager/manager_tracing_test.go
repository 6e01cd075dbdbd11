// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package avdmanager

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/forkbombeu/avdlaunch/internal/avd"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	spanRecorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder))
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})
	return spanRecorder
}

func TestManagerStartSpanAttributes(t *testing.T) {
	spanRecorder := installRecorder(t)

	manager := &Manager{
		env: avd.Env{
			Context:       context.Background(),
			CorrelationID: "corr-123",
		},
	}

	_, span := manager.startSpan(
		"avdmanager.Launch",
		attribute.String("avd_name", "fastlane"),
		attribute.Int("overrides", 3),
	)
	span.End()

	spans := spanRecorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	attrs := map[string]any{}
	for _, attr := range spans[0].Attributes() {
		attrs[string(attr.Key)] = attr.Value.AsInterface()
	}

	if attrs["correlation_id"] != "corr-123" {
		t.Fatalf("expected correlation_id to be corr-123, got %v", attrs["correlation_id"])
	}
	if attrs["avd_name"] != "fastlane" {
		t.Fatalf("expected avd_name to be fastlane, got %v", attrs["avd_name"])
	}
	if attrs["overrides"] != int64(3) {
		t.Fatalf("expected overrides to be 3, got %v", attrs["overrides"])
	}
}

func TestConfigureNestsInternalSpan(t *testing.T) {
	spanRecorder := installRecorder(t)

	home := t.TempDir()
	mgr := NewWithEnv(Environment{AVDHome: home, CorrelationID: "corr-9"})
	path := mgr.ConfigPath("fastlane")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("hw.gpu.mode=off\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := mgr.Configure("fastlane", map[string]string{"hw.gpu.mode": "auto"}); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	spans := spanRecorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	inner, outer := spans[0], spans[1]
	if inner.Name() != "avd.ApplyConfig" || outer.Name() != "avdmanager.Configure" {
		t.Fatalf("unexpected spans %s, %s", inner.Name(), outer.Name())
	}
	if inner.Parent().SpanID() != outer.SpanContext().SpanID() {
		t.Fatal("expected avd.ApplyConfig to be a child of avdmanager.Configure")
	}
}

func TestLaunchFailureMarksSpanError(t *testing.T) {
	spanRecorder := installRecorder(t)

	mgr := NewWithEnv(Environment{SDKRoot: t.TempDir(), AVDHome: t.TempDir()})
	if _, err := mgr.Launch(LaunchOptions{}); !avd.IsMissingConfig(err) {
		t.Fatalf("expected missing config error, got %v", err)
	}

	spans := spanRecorder.Ended()
	if len(spans) != 1 || spans[0].Name() != "avdmanager.Launch" {
		t.Fatalf("expected a single avdmanager.Launch span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("expected error status, got %v", spans[0].Status())
	}
	if len(spans[0].Events()) == 0 {
		t.Fatal("expected the error to be recorded as a span event")
	}
}

func TestConfigureFailureMarksSpanError(t *testing.T) {
	spanRecorder := installRecorder(t)

	mgr := NewWithEnv(Environment{AVDHome: t.TempDir()})
	if _, err := mgr.Configure("missing", map[string]string{"hw.gpu.mode": "auto"}); err == nil {
		t.Fatal("expected error for an AVD without config.ini")
	}

	var outer sdktrace.ReadOnlySpan
	for _, span := range spanRecorder.Ended() {
		if span.Name() == "avdmanager.Configure" {
			outer = span
		}
	}
	if outer == nil {
		t.Fatal("expected an avdmanager.Configure span")
	}
	if outer.Status().Code != codes.Error {
		t.Fatalf("expected error status, got %v", outer.Status())
	}
}
