// Package pkgutil loads Go packages and builds their SSA form.
package pkgutil

import (
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

var ErrLoad = errors.New("errors encountered while loading packages")

// Should be equivalent to packages.LoadAllSyntax (which is deprecated)
const LoadMode = packages.NeedSyntax | packages.NeedTypesInfo | packages.NeedTypes |
	packages.NeedTypesSizes | packages.NeedImports | packages.NeedName |
	packages.NeedFiles | packages.NeedCompiledGoFiles | packages.NeedDeps

const fakeRoot = "/fake/testpackage"

// LoadPackagesFromSource loads a main package consisting of a single file
// with the given contents.
func LoadPackagesFromSource(source string) ([]*packages.Package, error) {
	return LoadPackagesFromSources(map[string]string{"main.go": source})
}

// LoadPackagesFromSources loads one package from in-memory files, keyed by
// file name.
func LoadPackagesFromSources(files map[string]string) ([]*packages.Package, error) {
	// We use the Overlay mechanism to allow the tool to load non-existent files.
	overlay := make(map[string][]byte, len(files))
	var queries []string
	for name, src := range files {
		path := filepath.Join(fakeRoot, name)
		overlay[path] = []byte(src)
		queries = append(queries, path)
	}

	config := &packages.Config{
		Mode:    LoadMode,
		Tests:   false,
		Dir:     "",
		Env:     append(os.Environ(), "GO111MODULE=off", "GOPATH=/fake"),
		Overlay: overlay,
	}

	return LoadPackagesWithConfig(config, queries...)
}

func LoadPackagesWithConfig(config *packages.Config, queries ...string) ([]*packages.Package, error) {
	pkgs, err := packages.Load(config, queries...)
	switch {
	case err != nil:
		return nil, err
	case packages.PrintErrors(pkgs) > 0:
		return pkgs, ErrLoad
	default:
		return pkgs, nil
	}
}

// BuildSSA creates and builds the SSA program for pkgs and their
// dependencies, instantiating generic functions.
func BuildSSA(pkgs []*packages.Package) *ssa.Program {
	prog, _ := ssautil.AllPackages(pkgs, ssa.InstantiateGenerics)
	prog.Build()
	return prog
}
