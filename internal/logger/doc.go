// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder on stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level configuration and the verbosity switch used by the CLI,
//   - convenience functions (Infof, WarnKV, ErrorKV, etc.).
//
// Pipeline stages accept a context and extract the logger from it, so every
// line a stage writes carries the stage name.
package logger
