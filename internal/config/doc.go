// Package config defines the build configuration of the packager and
// provides helpers to load it from YAML, overlay the invoking environment,
// validate it and save it back.
//
// The environment is consulted only through ApplyEnv, which the command
// layer calls once; stages receive the resulting Config value.
package config
