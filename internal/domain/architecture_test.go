package domain_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

const modulePath = "github.com/davidleathers/dependable-access-control/internal/"

// allowedDomainImports lists the sibling domain packages each domain package
// may depend on. access sits at the bottom next to errors and values.
var allowedDomainImports = map[string][]string{
	"access":         {"errors"},
	"classification": {"access", "values"},
	"errors":         {},
	"filtering":      {"access", "classification", "errors", "values"},
	"values":         {},
}

func packageImports(t *testing.T, dir string) map[string]string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "*.go"))
	if err != nil {
		t.Fatal(err)
	}

	imports := make(map[string]string)
	fset := token.NewFileSet()
	for _, file := range files {
		if strings.HasSuffix(file, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, file, nil, parser.ImportsOnly)
		if err != nil {
			t.Fatalf("parsing %s: %v", file, err)
		}
		for _, imp := range f.Imports {
			path, _ := strconv.Unquote(imp.Path.Value)
			imports[path] = filepath.Base(file)
		}
	}
	return imports
}

func TestDomainPackagesAreKnown(t *testing.T) {
	entries, err := os.ReadDir(".")
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, ok := allowedDomainImports[e.Name()]; !ok {
			t.Errorf("domain package %s has no layering rule", e.Name())
		}
	}
}

func TestDomainLayering(t *testing.T) {
	for pkg, allowed := range allowedDomainImports {
		t.Run(pkg, func(t *testing.T) {
			for path, file := range packageImports(t, pkg) {
				if !strings.HasPrefix(path, modulePath) {
					continue
				}
				rel := strings.TrimPrefix(path, modulePath)
				sibling, isDomain := strings.CutPrefix(rel, "domain/")
				if !isDomain {
					t.Errorf("%s/%s imports outer layer %s", pkg, file, rel)
					continue
				}
				ok := false
				for _, a := range allowed {
					if sibling == a {
						ok = true
						break
					}
				}
				if !ok {
					t.Errorf("%s/%s imports domain/%s", pkg, file, sibling)
				}
			}
		})
	}
}
