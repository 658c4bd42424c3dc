// Package identity reconciles the bundle manifest with the canonical identity.
//
// The bundler does not guarantee a stable CFBundleIdentifier, and macOS keys
// privacy grants and notification routing on it. Reconcile applies an
// idempotent set-or-insert of the canonical identifier and of the fixed
// usage-description texts through an Editor, which is either the in-process
// plist file or the OS PlistBuddy tool.
package identity
