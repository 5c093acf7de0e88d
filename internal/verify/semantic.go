package verify

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

const (
	semanticConfidenceFull    = 0.90 // full scan ran clean
	semanticConfidencePartial = 0.85 // only partial checks apply
	semanticConfidenceShallow = 0.80 // nothing to scan
)

// stdlibPackages is the set of well-known package names used to detect
// references to packages that were never imported.
var stdlibPackages = map[string]bool{
	"fmt": true, "os": true, "strings": true, "strconv": true,
	"math": true, "time": true, "errors": true, "io": true,
	"sort": true, "bytes": true, "regexp": true, "json": true,
	"http": true, "context": true, "sync": true, "bufio": true,
}

// checkSemantic scans for reference-level problems the syntax layer
// cannot see: unused imports, references to packages that were never
// imported, and argument count mismatches for functions declared in
// the same file. Only Go content gets the full scan; other languages
// pass at reduced confidence.
func (v *Verifier) checkSemantic(ctx context.Context, in Input) LayerResult {
	start := time.Now()
	res := LayerResult{Layer: LayerSemantic}

	if strings.TrimSpace(in.Content) == "" {
		res.Passed = true
		res.Confidence = semanticConfidenceShallow
		res.Message = "no content to analyze"
		res.Duration = time.Since(start)
		return res
	}

	if strings.ToLower(filepath.Ext(in.TargetPath)) != ".go" {
		res.Passed = true
		res.Confidence = semanticConfidencePartial
		res.Message = "partial analysis only"
		res.Duration = time.Since(start)
		return res
	}

	problems, err := scanGoSemantics(ctx, in.Content)
	if err != nil {
		// Unparseable content is the syntax layer's finding, not ours.
		res.Passed = true
		res.Confidence = semanticConfidenceShallow
		res.Message = fmt.Sprintf("scan skipped: %v", err)
		res.Duration = time.Since(start)
		return res
	}

	if len(problems) > 0 {
		res.Passed = false
		res.Message = strings.Join(problems, "; ")
		res.Duration = time.Since(start)
		return res
	}

	res.Passed = true
	res.Confidence = semanticConfidenceFull
	res.Duration = time.Since(start)
	return res
}

type goScan struct {
	src        []byte
	imports    map[string]bool // base name -> seen usage
	funcParams map[string]int  // declared func -> param count (-1 variadic)
	problems   []string
}

func scanGoSemantics(ctx context.Context, content string) ([]string, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, []byte(content))
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	s := &goScan{
		src:        []byte(content),
		imports:    make(map[string]bool),
		funcParams: make(map[string]int),
	}

	s.collectDeclarations(tree.RootNode())
	s.checkReferences(tree.RootNode())

	for base, used := range s.imports {
		// Textual fallback covers type-position usage (x time.Time)
		// that the selector walk does not visit.
		if !used && !strings.Contains(content, base+".") {
			s.problems = append(s.problems, fmt.Sprintf("unused import %q", base))
		}
	}
	return s.problems, nil
}

func (s *goScan) collectDeclarations(node *sitter.Node) {
	switch node.Type() {
	case "import_spec":
		if path := node.ChildByFieldName("path"); path != nil {
			p := strings.Trim(path.Content(s.src), "`\"")
			base := p
			if i := strings.LastIndex(p, "/"); i >= 0 {
				base = p[i+1:]
			}
			s.imports[base] = false
		}
	case "function_declaration":
		name := node.ChildByFieldName("name")
		params := node.ChildByFieldName("parameters")
		if name != nil && params != nil {
			s.funcParams[name.Content(s.src)] = countParams(params, s.src)
		}
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		s.collectDeclarations(node.NamedChild(i))
	}
}

// countParams returns the parameter count, or -1 for variadic.
func countParams(list *sitter.Node, src []byte) int {
	count := 0
	for i := 0; i < int(list.NamedChildCount()); i++ {
		decl := list.NamedChild(i)
		switch decl.Type() {
		case "variadic_parameter_declaration":
			return -1
		case "parameter_declaration":
			names := 0
			for j := 0; j < int(decl.NamedChildCount()); j++ {
				if decl.NamedChild(j).Type() == "identifier" {
					names++
				}
			}
			if names == 0 {
				names = 1 // unnamed parameter
			}
			count += names
		}
	}
	return count
}

func (s *goScan) checkReferences(node *sitter.Node) {
	switch node.Type() {
	case "selector_expression":
		if op := node.ChildByFieldName("operand"); op != nil && op.Type() == "identifier" {
			name := op.Content(s.src)
			if _, imported := s.imports[name]; imported {
				s.imports[name] = true
			} else if stdlibPackages[name] {
				s.problems = append(s.problems,
					fmt.Sprintf("reference to package %q which is not imported", name))
			}
		}
	case "call_expression":
		fn := node.ChildByFieldName("function")
		args := node.ChildByFieldName("arguments")
		if fn != nil && args != nil && fn.Type() == "identifier" {
			if want, ok := s.funcParams[fn.Content(s.src)]; ok && want >= 0 {
				got := int(args.NamedChildCount())
				if got != want {
					s.problems = append(s.problems,
						fmt.Sprintf("%s called with %d args, declared with %d",
							fn.Content(s.src), got, want))
				}
			}
		}
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		s.checkReferences(node.NamedChild(i))
	}
}
