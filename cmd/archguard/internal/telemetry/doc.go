// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry configures OpenTelemetry tracing and metrics and the
// process logger.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.Init(ctx, cfg)
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer tel.Shutdown(ctx)
//
//	// Now otel.Tracer() and otel.Meter() are configured
//
// # Environment Variables
//
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//   - OTEL_TRACES_EXPORTER: otlp, stdout, or none (default: none)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout, or none (default: none)
//   - ARCHGUARD_ENV: environment name (default: development)
//   - ARCHGUARD_LOG_LEVEL: debug, info, warn or error (default: warn)
//
// # Metrics textfile
//
// A one-shot CLI run has no /metrics endpoint to scrape. With the
// prometheus exporter, metrics are collected into a private registry that
// WriteMetricsFile dumps in the node_exporter textfile format.
//
// # Thread Safety
//
// Init is called once at startup. Everything else is safe for concurrent use.
package telemetry
