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
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TreeSitterExtractor extracts import specifiers from a concrete syntax tree.
//
// Description:
//
//	Picks the grammar from the file extension (.tsx uses TSX, .ts/.mts/.cts
//	use TypeScript, everything else uses JavaScript, which accepts JSX) and
//	walks the tree collecting the string source of import statements,
//	re-exports, require() calls and dynamic import() calls. Syntax errors in
//	the file do not fail extraction; tree-sitter recovers and the well-formed
//	statements are still reported.
//
// Thread Safety: Safe for concurrent use. A parser is created per call.
type TreeSitterExtractor struct{}

// NewTreeSitterExtractor creates a TreeSitterExtractor.
func NewTreeSitterExtractor() *TreeSitterExtractor {
	return &TreeSitterExtractor{}
}

// Extract implements Extractor.
func (e *TreeSitterExtractor) Extract(ctx context.Context, path string, content []byte) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !utf8.Valid(content) {
		return nil, ErrInvalidContent
	}

	parser := sitter.NewParser()
	parser.SetLanguage(languageFor(path))

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, nil
	}

	var specs []string
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch node.Type() {
		case "import_statement", "export_statement":
			if src := node.ChildByFieldName("source"); src != nil {
				specs = append(specs, stringContent(src, content))
			}
		case "call_expression":
			if spec, ok := callSpecifier(node, content); ok {
				specs = append(specs, spec)
			}
		}

		// Push in reverse so children are visited in source order.
		for i := int(node.NamedChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, node.NamedChild(i))
		}
	}
	return specs, nil
}

func languageFor(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsx":
		return tsx.GetLanguage()
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

// callSpecifier returns the literal argument of require("x") or import("x").
func callSpecifier(node *sitter.Node, content []byte) (string, bool) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return "", false
	}
	switch {
	case fn.Type() == "import":
	case fn.Type() == "identifier" && fn.Content(content) == "require":
	default:
		return "", false
	}

	args := node.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() != 1 {
		return "", false
	}
	arg := args.NamedChild(0)
	if arg.Type() != "string" {
		return "", false
	}
	return stringContent(arg, content), true
}

// stringContent returns the text of a string literal node without quotes.
func stringContent(node *sitter.Node, content []byte) string {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "string_fragment" {
			return child.Content(content)
		}
	}
	return strings.Trim(node.Content(content), `"'`)
}
