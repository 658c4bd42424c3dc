// Package pipeline runs the macOS packaging stages in order.
//
// Each stage either succeeds, fails fatally (the run stops and the error is
// returned) or records a diagnostic and lets the run continue. Diagnostics
// are untrusted-signature, missing-keychain-identity, failed-termination and
// failed-launch conditions; they end up in Report and in the log, never in
// the exit status.
package pipeline
