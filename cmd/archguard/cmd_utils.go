// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/policy"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/report"
	"github.com/Wertoquri/ARCHGUARD-sub000/cmd/archguard/internal/risk"
)

// now is the clock used by every command.
var now = time.Now

// sinkOptions returns report sink options bound to the command's stdout.
func sinkOptions(cmd *cobra.Command, credentialsFile string) report.SinkOptions {
	return report.SinkOptions{
		Stdout:          cmd.OutOrStdout(),
		CredentialsFile: credentialsFile,
	}
}

// writeJSON encodes v with two-space indentation and delivers it to dest
// through the report sinks ("-", a file path or gs://bucket/object).
func writeJSON(ctx context.Context, cmd *cobra.Command, dest string, v any, credentialsFile string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	return writeBytes(ctx, cmd, dest, buf.Bytes(), credentialsFile)
}

// writeBytes delivers data to dest through the report sinks.
func writeBytes(ctx context.Context, cmd *cobra.Command, dest string, data []byte, credentialsFile string) error {
	sink, err := report.OpenSink(ctx, dest, sinkOptions(cmd, credentialsFile))
	if errors.Is(err, report.ErrInvalidDestination) {
		return &ConfigError{Flag: "out", Err: err}
	}
	if err != nil {
		return err
	}
	if closer, ok := sink.(io.Closer); ok {
		defer closer.Close()
	}
	if err := sink.Write(ctx, data); err != nil {
		return fmt.Errorf("write %s: %w", sink, err)
	}
	return nil
}

// writeReport writes r to dest, mapping a bad destination to a ConfigError.
func writeReport(ctx context.Context, cmd *cobra.Command, dest string, r *report.Report, credentialsFile string) error {
	err := report.Write(ctx, dest, r, sinkOptions(cmd, credentialsFile))
	if errors.Is(err, report.ErrInvalidDestination) {
		return &ConfigError{Flag: "out", Err: err}
	}
	return err
}

// requireFlag returns a ConfigError when a required string flag is empty.
func requireFlag(name, value string) error {
	if value == "" {
		return &ConfigError{Flag: name, Err: errors.New("flag is required")}
	}
	return nil
}

// parseFailOn parses a --fail-on value. An empty value means no threshold.
func parseFailOn(s string) (policy.Severity, error) {
	if s == "" {
		return "", nil
	}
	sev, err := policy.ParseSeverity(s)
	if err != nil {
		return "", &ConfigError{Flag: "fail-on", Err: err}
	}
	return sev, nil
}

// parseFailOnRisk parses a --fail-on-risk value. An empty value means no
// threshold.
func parseFailOnRisk(s string) (risk.RiskLevel, error) {
	if s == "" {
		return "", nil
	}
	level, err := risk.ParseRiskLevel(s)
	if err != nil {
		return "", &ConfigError{Flag: "fail-on-risk", Err: err}
	}
	return level, nil
}

// gateRisk returns a *RiskGateError when the assessed risk level of r is
// above threshold. Reports without an assessment and an empty threshold
// never fail.
func gateRisk(r *report.Report, threshold risk.RiskLevel) error {
	a := r.RiskAssessment
	if threshold == "" || a == nil || !a.RiskLevel.Exceeds(threshold) {
		return nil
	}
	return &RiskGateError{Level: string(a.RiskLevel), Threshold: string(threshold)}
}

// gateReport returns a *ViolationError when r holds a violation at or above
// threshold. An empty threshold never fails.
func gateReport(r *report.Report, threshold policy.Severity) error {
	if threshold == "" || !r.HasViolationAtLeast(threshold) {
		return nil
	}
	count := 0
	for _, v := range r.Violations {
		if v.Severity.AtLeast(threshold) {
			count++
		}
	}
	return &ViolationError{Threshold: string(threshold), Count: count}
}
