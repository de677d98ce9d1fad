// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract reads source files and turns their static import
// specifiers into module references.
//
// Two extractors are available: a regular-expression scanner that is the
// default, and a tree-sitter based one that understands the TypeScript, TSX
// and JavaScript grammars. Both only report specifiers written as string
// literals; computed imports are ignored.
package extract

import (
	"context"
	"fmt"
	"strings"
)

// Extractor kinds accepted by New.
const (
	KindRegex      = "regex"
	KindTreeSitter = "treesitter"
)

// Extractor returns the raw import/export specifiers found in one file.
//
// Implementations must be safe for concurrent use; Run calls Extract from
// several goroutines at once.
type Extractor interface {
	Extract(ctx context.Context, path string, content []byte) ([]string, error)
}

// New returns the extractor registered under kind.
func New(kind string) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindRegex:
		return NewRegexExtractor(), nil
	case KindTreeSitter, "tree-sitter":
		return NewTreeSitterExtractor(), nil
	default:
		return nil, fmt.Errorf("%w: %q (valid: %s, %s)", ErrUnknownExtractor, kind, KindRegex, KindTreeSitter)
	}
}

// IsRelative reports whether spec is a relative module reference.
func IsRelative(spec string) bool {
	return spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

// PackageName reduces a bare specifier to its package name, keeping the
// scope for scoped packages. "lodash/fp" becomes "lodash" and
// "@scope/pkg/sub" becomes "@scope/pkg". Node built-ins prefixed with
// "node:" and absolute paths return "".
func PackageName(spec string) string {
	if spec == "" || IsRelative(spec) || strings.HasPrefix(spec, "/") || strings.HasPrefix(spec, "node:") {
		return ""
	}
	parts := strings.Split(spec, "/")
	if strings.HasPrefix(spec, "@") {
		if len(parts) < 2 || parts[1] == "" {
			return ""
		}
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

// CountLines returns the number of newline-delimited lines in content,
// counting trailing content after the last newline as a line. An empty file
// has one line.
func CountLines(content []byte) int {
	n := 1
	for _, b := range content {
		if b == '\n' {
			n++
		}
	}
	return n
}
