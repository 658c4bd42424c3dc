// Package installer models the Windows installer descriptor.
//
// A Descriptor lists files, shortcuts, registry values and uninstall rules
// as plain data. Validate enforces the cross references the OS depends on:
// shortcuts and the AppUserModelId registration must carry the same AUMID,
// identity registrations are removed as whole keys on uninstall, and the
// running executable is terminated before its files are deleted.
//
// Lifecycle is an executable model of the install, upgrade and uninstall
// state machine over a Machine, used to check uninstall completeness while
// the descriptor is being authored.
package installer
