// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scanner

import (
	"errors"
	"fmt"
)

// Sentinel errors for scanning.
var (
	ErrEmptyRoot        = errors.New("project root must not be empty")
	ErrRootNotDirectory = errors.New("project root is not a directory")
	ErrInvalidPattern   = errors.New("invalid glob pattern")
)

// ScanError is returned when the file system walk fails. A scan that fails
// never yields a partial file list.
type ScanError struct {
	Root string
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	if e.Path != "" && e.Path != e.Root {
		return fmt.Sprintf("scanning %s (at %s): %v", e.Root, e.Path, e.Err)
	}
	return fmt.Sprintf("scanning %s: %v", e.Root, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}
