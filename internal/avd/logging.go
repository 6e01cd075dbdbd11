// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package avd

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
)

var avdLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
	Level: slog.LevelInfo,
}))

// SetLogOutput redirects launcher events, e.g. to stderr when stdout carries results.
func SetLogOutput(w io.Writer) {
	avdLogger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func logEvent(env Env, message string, fields ...any) {
	now := time.Now().UTC()
	baseFields := []any{"timestamp_ns", now.UnixNano()}
	if env.CorrelationID != "" {
		baseFields = append(baseFields, "correlation_id", env.CorrelationID)
	}
	allFields := append(baseFields, fields...)
	avdLogger.Info(message, allFields...)
	emitOTel(env, now, message, allFields)
}

// emitOTel mirrors an event to the global OpenTelemetry logger provider.
func emitOTel(env Env, at time.Time, message string, fields []any) {
	var record otellog.Record
	record.SetTimestamp(at)
	record.SetSeverity(otellog.SeverityInfo)
	record.SetBody(otellog.StringValue(message))
	for i := 0; i+1 < len(fields); i += 2 {
		record.AddAttributes(otellog.String(fmt.Sprint(fields[i]), fmt.Sprint(fields[i+1])))
	}
	global.Logger("avdlaunch").Emit(spanContext(env), record)
}

type lineLogWriter struct {
	env    Env
	fields []any
	buffer []byte
	msg    string
}

func (writer *lineLogWriter) Write(payload []byte) (int, error) {
	writer.buffer = append(writer.buffer, payload...)
	for {
		newlineIndex := bytes.IndexByte(writer.buffer, '\n')
		if newlineIndex == -1 {
			break
		}
		line := strings.TrimSpace(string(writer.buffer[:newlineIndex]))
		writer.buffer = writer.buffer[newlineIndex+1:]
		if line != "" {
			logEvent(writer.env, writer.msg, append(writer.fields, "line", line)...)
		}
	}
	return len(payload), nil
}

func newCommandLogWriter(env Env, command string, args []string) io.Writer {
	fields := []any{"command", command}
	if len(args) > 0 {
		fields = append(fields, "args", strings.Join(args, " "))
	}
	return &lineLogWriter{
		env:    env,
		fields: fields,
		msg:    "command output",
	}
}
