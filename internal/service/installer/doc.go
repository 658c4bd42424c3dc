// Package installer turns an installer descriptor into an Inno Setup script,
// optionally compiles it into a setup executable and simulates the resulting
// install, upgrade and uninstall cycle against an in-memory machine.
package installer
