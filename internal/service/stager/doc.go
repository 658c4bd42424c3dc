// Package stager installs the signed bundle at its fixed location and launches it.
//
// Installation is a full replacement: running instances are terminated, the
// previous bundle is removed entirely, and the new one is copied in with
// file modes and symlinks preserved. Launching is fire-and-forget.
//
// The remove-then-copy sequence is not crash-safe: a kill between the two
// steps leaves no bundle at the install path until the next successful run.
package stager
