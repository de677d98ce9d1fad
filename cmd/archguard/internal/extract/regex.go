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
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var (
	specifierPatterns = []*regexp.Regexp{
		// import x from './a'; import { a, b } from "./a"; import type T from './t'
		regexp.MustCompile(`\bimport\s[^'";]*?\bfrom\s*['"]([^'"\n]+)['"]`),
		// import './side-effect'
		regexp.MustCompile(`\bimport\s*['"]([^'"\n]+)['"]`),
		// export { a } from './a'; export * from './a'
		regexp.MustCompile(`\bexport\s[^'";]*?\bfrom\s*['"]([^'"\n]+)['"]`),
		// require('./a')
		regexp.MustCompile(`\brequire\s*\(\s*['"]([^'"\n]+)['"]\s*\)`),
		// import('./lazy')
		regexp.MustCompile(`\bimport\s*\(\s*['"]([^'"\n]+)['"]\s*\)`),
	}
)

// RegexExtractor finds import specifiers with regular expressions.
//
// Comments are blanked before matching so commented-out imports do not
// produce edges. A small lexer finds them, so comment markers inside string,
// template or regex literals are left alone. Specifiers are returned in
// source order, one per statement.
//
// Thread Safety: Safe for concurrent use.
type RegexExtractor struct{}

// NewRegexExtractor creates a RegexExtractor.
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

// Extract implements Extractor.
func (e *RegexExtractor) Extract(ctx context.Context, path string, content []byte) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !utf8.Valid(content) {
		return nil, ErrInvalidContent
	}

	src := stripComments(content)

	type hit struct {
		pos  int
		spec string
	}
	seen := make(map[int]bool)
	var hits []hit
	for _, re := range specifierPatterns {
		for _, m := range re.FindAllSubmatchIndex(src, -1) {
			start := m[2]
			if seen[start] {
				continue
			}
			seen[start] = true
			hits = append(hits, hit{pos: start, spec: string(src[m[2]:m[3]])})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		return hits[i].pos < hits[j].pos
	})

	specs := make([]string, 0, len(hits))
	for _, h := range hits {
		specs = append(specs, h.spec)
	}
	return specs, nil
}

// stripComments replaces comments with spaces, preserving byte offsets and
// line breaks. String, template and regular expression literals are
// skipped so that "/*" or "//" inside them does not open a comment.
func stripComments(content []byte) []byte {
	src := append([]byte(nil), content...)
	n := len(src)
	blank := func(from, to int) {
		for i := from; i < to; i++ {
			if src[i] != '\n' {
				src[i] = ' '
			}
		}
	}

	// prev is the last significant byte outside comments, used to tell a
	// regex literal from a division.
	var prev byte
	for i := 0; i < n; {
		c := src[i]
		switch {
		case c == '/' && i+1 < n && src[i+1] == '/':
			end := i + 2
			for end < n && src[end] != '\n' {
				end++
			}
			blank(i, end)
			i = end
		case c == '/' && i+1 < n && src[i+1] == '*':
			end := i + 2
			for end+1 < n && !(src[end] == '*' && src[end+1] == '/') {
				end++
			}
			end = min(end+2, n)
			blank(i, end)
			i = end
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(src, i, c)
			prev = c
		case c == '/' && regexAllowedAfter(prev):
			i = skipRegex(src, i)
			prev = '/'
		default:
			if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
				prev = c
			}
			i++
		}
	}
	return src
}

// skipQuoted returns the index just past the literal opened by quote at
// start. Single and double quoted strings also end at a line break.
func skipQuoted(src []byte, start int, quote byte) int {
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		case '\n':
			if quote != '`' {
				return i + 1
			}
		}
	}
	return len(src)
}

// skipRegex returns the index just past the regex literal at start,
// including its flags. A "/" inside a character class does not close it.
func skipRegex(src []byte, start int) int {
	inClass := false
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '\n':
			return i
		case '/':
			if inClass {
				continue
			}
			i++
			for i < len(src) && isIdentByte(src[i]) {
				i++
			}
			return i
		}
	}
	return len(src)
}

// regexAllowedAfter reports whether a "/" following prev starts a regex
// literal rather than a division.
func regexAllowedAfter(prev byte) bool {
	if prev == 0 {
		return true
	}
	return strings.IndexByte("(,=:[!&|?{};+-*%<>~^", prev) >= 0
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '$' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
