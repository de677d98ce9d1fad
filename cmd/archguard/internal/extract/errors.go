// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidContent      = errors.New("content is not valid UTF-8")
	ErrFileTooLarge        = errors.New("file exceeds maximum size")
	ErrUnknownExtractor    = errors.New("unknown extractor")
	ErrInvalidWorkerCount  = errors.New("worker count must be greater than 0")
	ErrInvalidMaxFileSize  = errors.New("max file size must be greater than 0")
	ErrNilExtractor        = errors.New("extractor must not be nil")
	ErrResolverCacheConfig = errors.New("resolver cache size must be greater than 0")
)

// ParseError represents a failure to read or extract imports from one file.
type ParseError struct {
	FilePath string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.FilePath, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
