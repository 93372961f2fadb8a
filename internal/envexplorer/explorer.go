package envexplorer

import (
	"context"
	"path"
	"runtime"
	"sort"
	"strings"

	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/errs"
	"golang.org/x/mod/modfile"
	"golang.org/x/mod/semver"
)

// Explorer classifies packages into a Manifest.
type Explorer struct {
	index      Index
	targetOS   string
	targetArch string
}

// Option configures an Explorer.
type Option func(*Explorer)

// WithIndex replaces the default proxy index.
func WithIndex(idx Index) Option {
	return func(e *Explorer) { e.index = idx }
}

// WithTarget sets the platform of the servant. Binary packages can only be
// shipped when it matches the local platform.
func WithTarget(goos, goarch string) Option {
	return func(e *Explorer) {
		if goos != "" {
			e.targetOS = goos
		}
		if goarch != "" {
			e.targetArch = goarch
		}
	}
}

// New returns an explorer that targets the local platform and uses the
// public module proxy.
func New(opts ...Option) *Explorer {
	e := &Explorer{targetOS: runtime.GOOS, targetArch: runtime.GOARCH}
	for _, opt := range opts {
		opt(e)
	}
	if e.index == nil {
		e.index = NewProxyIndex("")
	}
	return e
}

// Explore builds the manifest for pkgs. Packages that cannot be located, and
// binary packages built for another platform, fail the whole call with a
// DependencyResolutionError naming all of them.
func (e *Explorer) Explore(ctx context.Context, pkgs []GoPackage) (*Manifest, error) {
	logger := ctxlog.FromContext(ctx)
	m := &Manifest{Packages: map[string]Package{}}
	crossPlatform := e.targetOS != runtime.GOOS || e.targetArch != runtime.GOARCH

	published := map[string]bool{}
	var missing, incompatible []string

	for _, p := range pkgs {
		if p.Standard {
			continue
		}
		binary := p.Binary()
		if binary && crossPlatform {
			incompatible = append(incompatible, p.ImportPath)
			continue
		}

		mod := p.Module
		switch {
		case mod == nil || mod.Main:
			if p.Dir == "" {
				missing = append(missing, p.ImportPath)
				continue
			}
			m.addPath(topLevel(p, mod), p.Dir, binary)

		case mod.Replace != nil && modfile.IsDirectoryPath(mod.Replace.Path):
			dir := p.Dir
			if dir == "" {
				dir = mod.Replace.Path
			}
			m.addPath(mod.Path, dir, binary)

		default:
			version := mod.Version
			if mod.Replace != nil && mod.Replace.Version != "" {
				version = mod.Replace.Version
			}
			if !semver.IsValid(version) {
				if p.Dir == "" {
					missing = append(missing, p.ImportPath)
					continue
				}
				m.addPath(mod.Path, p.Dir, binary)
				continue
			}

			key := mod.Path + "@" + version
			ok, seen := published[key]
			if !seen {
				var err error
				ok, err = e.index.Exists(ctx, modulePath(mod), version)
				if err != nil {
					logger.Warn("Module index lookup failed; shipping files.", "module", key, "error", err)
					ok = false
				}
				published[key] = ok
			}
			if ok {
				m.addVersion(mod.Path, version, binary)
				continue
			}
			dir := p.Dir
			if dir == "" {
				dir = mod.Dir
			}
			if dir == "" {
				missing = append(missing, p.ImportPath)
				continue
			}
			m.addPath(mod.Path, dir, binary)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &errs.DependencyResolutionError{Modules: missing, Reason: "no locatable directory"}
	}
	if len(incompatible) > 0 {
		sort.Strings(incompatible)
		return nil, &errs.DependencyResolutionError{
			Modules: incompatible,
			Reason:  "binary packages cannot be shipped to " + e.targetOS + "/" + e.targetArch,
		}
	}
	logger.Debug("Environment explored.", "entries", len(m.Packages))
	return m, nil
}

func modulePath(mod *GoModule) string {
	if mod.Replace != nil && mod.Replace.Version != "" {
		return mod.Replace.Path
	}
	return mod.Path
}

// topLevel groups main-module and module-less packages. Main-module packages
// share the module path; GOPATH-style packages are keyed by their first
// import path element.
func topLevel(p GoPackage, mod *GoModule) string {
	if mod != nil && mod.Path != "" {
		return mod.Path
	}
	first, _, _ := strings.Cut(path.Clean(p.ImportPath), "/")
	return first
}
