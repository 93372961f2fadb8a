package envexplorer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime/debug"
	"strings"
)

// GoModule is the module part of `go list -json` output.
type GoModule struct {
	Path    string
	Version string
	Dir     string
	Main    bool
	Replace *GoModule
}

// GoPackage is the subset of `go list -json` output the explorer reads.
type GoPackage struct {
	ImportPath string
	Dir        string
	Standard   bool
	Module     *GoModule
	CgoFiles   []string
	SwigFiles  []string
	SysoFiles  []string
}

// Binary reports whether the package is built from native inputs.
func (p GoPackage) Binary() bool {
	return len(p.CgoFiles)+len(p.SwigFiles)+len(p.SysoFiles) > 0
}

// ParseGoList decodes the concatenated JSON objects written by
// `go list -json`.
func ParseGoList(r io.Reader) ([]GoPackage, error) {
	dec := json.NewDecoder(r)
	var pkgs []GoPackage
	for {
		var p GoPackage
		err := dec.Decode(&p)
		if errors.Is(err, io.EOF) {
			return pkgs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decoding go list output: %w", err)
		}
		pkgs = append(pkgs, p)
	}
}

// ListPackages runs `go list -deps -json` in dir for the given patterns.
func ListPackages(ctx context.Context, dir string, patterns ...string) ([]GoPackage, error) {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}
	args := append([]string{"list", "-deps", "-json"}, patterns...)
	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("go list: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return ParseGoList(&stdout)
}

// FromBuildInfo describes the modules linked into a binary. Build info has
// no package directories, so the main module is attributed to mainDir.
func FromBuildInfo(bi *debug.BuildInfo, mainDir string) []GoPackage {
	if bi == nil {
		return nil
	}
	pkgs := []GoPackage{{
		ImportPath: bi.Main.Path,
		Dir:        mainDir,
		Module:     &GoModule{Path: bi.Main.Path, Main: true, Dir: mainDir},
	}}
	for _, dep := range bi.Deps {
		m := &GoModule{Path: dep.Path, Version: dep.Version}
		if dep.Replace != nil {
			m.Replace = &GoModule{Path: dep.Replace.Path, Version: dep.Replace.Version}
			if dep.Replace.Version == "" {
				m.Dir = dep.Replace.Path
			}
		}
		pkgs = append(pkgs, GoPackage{ImportPath: dep.Path, Dir: m.Dir, Module: m})
	}
	return pkgs
}
