// Package common holds helpers shared by the pipeline stages.
//
// It provides the Runner abstraction every stage uses to invoke external
// tools synchronously and a helper that detects the build host and user.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
