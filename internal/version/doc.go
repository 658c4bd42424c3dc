// Package version exposes build metadata for the packager binary itself.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags.
package version
