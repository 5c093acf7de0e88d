package verify

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
)

const syntaxConfidence = 0.95

// languageFor returns the tree-sitter grammar for a path, or nil when
// no grammar covers it.
func languageFor(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return golang.GetLanguage()
	case ".py":
		return python.GetLanguage()
	case ".js", ".mjs", ".jsx":
		return javascript.GetLanguage()
	default:
		return nil
	}
}

// checkSyntax parses the content with the grammar matching the target
// and fails on any error node. Targets without a grammar pass; syntax
// checking is only meaningful for code we can parse.
func (v *Verifier) checkSyntax(ctx context.Context, in Input) LayerResult {
	start := time.Now()
	res := LayerResult{Layer: LayerSyntax}

	lang := languageFor(in.TargetPath)
	if lang == nil || strings.TrimSpace(in.Content) == "" {
		res.Passed = true
		res.Confidence = syntaxConfidence
		res.Message = "no parseable content"
		res.Duration = time.Since(start)
		return res
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, []byte(in.Content))
	if err != nil {
		res.Passed = false
		res.Message = fmt.Sprintf("parse error: %v", err)
		res.Duration = time.Since(start)
		return res
	}
	defer tree.Close()

	if node := firstErrorNode(tree.RootNode()); node != nil {
		res.Passed = false
		res.Message = fmt.Sprintf("syntax error at line %d: %s",
			node.StartPoint().Row+1, snippet(in.Content, node))
		res.Duration = time.Since(start)
		return res
	}

	res.Passed = true
	res.Confidence = syntaxConfidence
	res.Duration = time.Since(start)
	return res
}

// firstErrorNode walks the tree for the first ERROR or MISSING node.
func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node == nil || !node.HasError() {
		return nil
	}
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if found := firstErrorNode(node.Child(i)); found != nil {
			return found
		}
	}
	// HasError is set but no explicit error child: report this node.
	return node
}

func snippet(content string, node *sitter.Node) string {
	s := node.Content([]byte(content))
	if len(s) > 60 {
		s = s[:60] + "..."
	}
	return strings.ReplaceAll(s, "\n", "\\n")
}
