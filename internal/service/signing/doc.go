// Package signing re-signs the application bundle with the OS code signing utility.
//
// Signing must follow every manifest mutation because editing bundle contents
// invalidates the previous seal. Verification and the identity lookup are
// diagnostics: their failures are returned as errors for the caller to record,
// never to abort on.
package signing
