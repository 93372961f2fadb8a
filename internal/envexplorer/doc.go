// Package envexplorer works out which packages a remote execution needs and
// how each of them can reach the servant: by module reference, as local
// files, or not at all.
//
// Standard library packages are ignored. Packages of a versioned dependency
// module are referenced by path and version when the module proxy knows that
// version, and shipped as files otherwise. Modules replaced by a local
// directory, and the main module itself, are always shipped as files.
// Packages built from cgo, SWIG or syso inputs are flagged binary because
// their files only work on a matching platform.
package envexplorer
