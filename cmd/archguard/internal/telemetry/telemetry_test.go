// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "")
	t.Setenv("OTEL_METRICS_EXPORTER", "")
	cfg := DefaultConfig()

	if cfg.ServiceName != "archguard" {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "archguard")
	}
	if cfg.TraceExporter != ExporterNone {
		t.Errorf("TraceExporter = %q, want %q", cfg.TraceExporter, ExporterNone)
	}
	if cfg.MetricExporter != ExporterNone {
		t.Errorf("MetricExporter = %q, want %q", cfg.MetricExporter, ExporterNone)
	}
	if cfg.OTLPEndpoint != "localhost:4317" {
		t.Errorf("OTLPEndpoint = %q, want %q", cfg.OTLPEndpoint, "localhost:4317")
	}
}

func TestDefaultConfig_Env(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "stdout")
	t.Setenv("ARCHGUARD_ENV", "ci")
	cfg := DefaultConfig()

	if cfg.TraceExporter != "stdout" {
		t.Errorf("TraceExporter = %q, want %q", cfg.TraceExporter, "stdout")
	}
	if cfg.Environment != "ci" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "ci")
	}
}

func TestInit_NilContext(t *testing.T) {
	cfg := DefaultConfig()

	//nolint:staticcheck // nil context is the case under test
	_, err := Init(nil, cfg)
	if err != ErrNilContext {
		t.Errorf("Init(nil, cfg) error = %v, want %v", err, ErrNilContext)
	}
}

func TestInit_NoopExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = ExporterNone
	cfg.MetricExporter = ExporterNone

	tel, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if tel.Registry() != nil {
		t.Error("Registry() should be nil without the prometheus exporter")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestInit_StdoutExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = ExporterStdout
	cfg.MetricExporter = ExporterNone

	tel, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer tel.Shutdown(context.Background())

	_, span := otel.Tracer("test").Start(context.Background(), "test-span")
	if !span.SpanContext().IsValid() {
		t.Error("span should have a valid context after Init with stdout exporter")
	}
	span.End()
}

func TestInit_UnknownExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "bogus"

	_, err := Init(context.Background(), cfg)
	if err == nil {
		t.Fatal("Init() should fail for unknown trace exporter")
	}
	if !strings.Contains(err.Error(), "unknown exporter type") {
		t.Errorf("error = %v, want to contain 'unknown exporter type'", err)
	}
}

func TestInit_UnknownMetricExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = ExporterNone
	cfg.MetricExporter = "bogus"

	_, err := Init(context.Background(), cfg)
	if err == nil {
		t.Fatal("Init() should fail for unknown metric exporter")
	}
	if !strings.Contains(err.Error(), "unknown exporter type") {
		t.Errorf("error = %v, want to contain 'unknown exporter type'", err)
	}
}

func TestWriteMetricsFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = ExporterNone
	cfg.MetricExporter = ExporterPrometheus

	tel, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer tel.Shutdown(context.Background())

	counter, err := otel.Meter("test").Int64Counter("archguard_test_runs_total")
	if err != nil {
		t.Fatalf("Int64Counter() error = %v", err)
	}
	counter.Add(context.Background(), 1)

	path := filepath.Join(t.TempDir(), "archguard.prom")
	if err := tel.WriteMetricsFile(path); err != nil {
		t.Fatalf("WriteMetricsFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "archguard_test_runs_total") {
		t.Errorf("metrics file should contain the counter: %s", data)
	}
}

func TestWriteMetricsFile_NoRegistry(t *testing.T) {
	tel := &Telemetry{}
	err := tel.WriteMetricsFile(filepath.Join(t.TempDir(), "x.prom"))
	if err != ErrNoRegistry {
		t.Errorf("WriteMetricsFile() error = %v, want %v", err, ErrNoRegistry)
	}
}

func TestGetEnvOr(t *testing.T) {
	t.Setenv("ARCHGUARD_TEST_VAR", "value")
	if got := getEnvOr("ARCHGUARD_TEST_VAR", "fallback"); got != "value" {
		t.Errorf("getEnvOr() = %q, want %q", got, "value")
	}
	if got := getEnvOr("ARCHGUARD_TEST_UNSET_VAR", "fallback"); got != "fallback" {
		t.Errorf("getEnvOr() = %q, want %q", got, "fallback")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo, true)
	logger.Debug("hidden")
	logger.Info("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("debug line should be filtered: %s", output)
	}
	if !strings.Contains(output, `"msg":"shown"`) {
		t.Errorf("output should be JSON: %s", output)
	}
}

func TestLoggerWithTrace_NoSpan(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	LoggerWithTrace(context.Background(), logger).Info("test message")

	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("output should not contain trace_id when no span: %s", buf.String())
	}
}

func TestLoggerWithTrace_NilLogger(t *testing.T) {
	if LoggerWithTrace(context.Background(), nil) == nil {
		t.Error("result should not be nil")
	}
}

func TestLoggerWithTrace_WithSpan(t *testing.T) {
	traceID := trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}
	spanID := trace.SpanID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	LoggerWithTrace(ctx, logger).Info("test message")

	output := buf.String()
	if !strings.Contains(output, traceID.String()) {
		t.Errorf("output should contain actual trace ID: %s", output)
	}
	if !strings.Contains(output, "span_id") {
		t.Errorf("output should contain span_id: %s", output)
	}
}

func TestRunMetrics_Record(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = ExporterNone
	cfg.MetricExporter = ExporterPrometheus

	tel, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer tel.Shutdown(context.Background())

	m, err := NewRunMetrics(otel.Meter("archguard-test"))
	if err != nil {
		t.Fatalf("NewRunMetrics() error = %v", err)
	}
	m.Record(context.Background(), RunStats{
		Project:           "demo",
		Modules:           5,
		Edges:             4,
		CycleModules:      3,
		Violations:        4,
		ArchitectureScore: 83,
		Duration:          250 * time.Millisecond,
	})

	path := filepath.Join(t.TempDir(), "archguard.prom")
	if err := tel.WriteMetricsFile(path); err != nil {
		t.Fatalf("WriteMetricsFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	for _, name := range []string{"archguard_runs_total", "archguard_architecture_score", "archguard_run_duration_seconds"} {
		if !strings.Contains(string(data), name) {
			t.Errorf("metrics file should contain %s", name)
		}
	}
}
