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
	"errors"
	"fmt"
)

// Exit codes.
const (
	ExitSuccess   = 0
	ExitViolation = 1
	ExitError     = 2
)

// ConfigError reports a missing or invalid command-line setting.
//
// # Example
//
//	err := &ConfigError{Flag: "fail-on", Err: policy.ErrInvalidSeverity}
//	fmt.Println(err.Error()) // "invalid --fail-on: invalid severity"
type ConfigError struct {
	// Flag is the flag name without dashes. Empty for errors not tied to
	// one flag.
	Flag string

	// Err is the underlying error.
	Err error
}

func (e *ConfigError) Error() string {
	if e.Flag == "" {
		return fmt.Sprintf("invalid configuration: %v", e.Err)
	}
	return fmt.Sprintf("invalid --%s: %v", e.Flag, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ViolationError ends a run whose report holds violations at or above the
// --fail-on threshold. It carries no diagnostic; the report is the output.
type ViolationError struct {
	Threshold string
	Count     int
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%d violation(s) at or above %s", e.Count, e.Threshold)
}

// RiskGateError ends a run whose architecture risk level is above the
// --fail-on-risk threshold. Like ViolationError it carries no diagnostic.
type RiskGateError struct {
	Level     string
	Threshold string
}

func (e *RiskGateError) Error() string {
	return fmt.Sprintf("risk level %s exceeds %s", e.Level, e.Threshold)
}

// isGateError reports whether err is a policy or risk gate failure.
func isGateError(err error) bool {
	var ve *ViolationError
	var re *RiskGateError
	return errors.As(err, &ve) || errors.As(err, &re)
}

// ExitCode maps a command error to a process exit code.
//
// # Outputs
//
//   - 0 for nil
//   - 1 for *ViolationError and *RiskGateError
//   - 2 for everything else
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if isGateError(err) {
		return ExitViolation
	}
	return ExitError
}
