// Package bundler drives the external native bundler.
//
// It probes which optional flags the installed bundler supports, resolves
// the application version from its package metadata, assembles the bundler
// command line and runs it, checking that the expected .app bundle exists
// afterwards.
package bundler
