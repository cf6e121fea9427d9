package httpx

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// Outbound calls go through NewClient so every request carries a timeout.
func TestNoDefaultClientOutsideHttpx(t *testing.T) {
	root := filepath.Clean(filepath.Join("..", "..", ".."))
	fset := token.NewFileSet()
	var violations []string

	for _, dir := range []string{"internal", "cmd"} {
		err := filepath.WalkDir(filepath.Join(root, dir), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == "testdata" {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			file, err := parser.ParseFile(fset, path, nil, 0)
			if err != nil {
				return err
			}
			ast.Inspect(file, func(n ast.Node) bool {
				sel, ok := n.(*ast.SelectorExpr)
				if !ok {
					return true
				}
				if id, ok := sel.X.(*ast.Ident); ok && id.Name == "http" &&
					(sel.Sel.Name == "DefaultClient" || sel.Sel.Name == "Get" || sel.Sel.Name == "Post") {
					violations = append(violations, fset.Position(sel.Pos()).String()+" http."+sel.Sel.Name)
				}
				return true
			})
			return nil
		})
		if err != nil {
			t.Fatalf("scan %s: %v", dir, err)
		}
	}

	sort.Strings(violations)
	if len(violations) > 0 {
		t.Fatalf("use httpx.NewClient instead of the default client:\n%s", strings.Join(violations, "\n"))
	}
}
