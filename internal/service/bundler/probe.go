package bundler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/richqaq/pastemd-packager/internal/config"
	"github.com/richqaq/pastemd-packager/internal/service/common"
)

// Optional bundler flags whose availability depends on the bundler version.
const (
	FlagVersionStamp  = "--macos-app-version"
	FlagSignedAppName = "--macos-signed-app-name"
	FlagSignIdentity  = "--macos-sign-identity"
)

// ErrBundlerUnavailable is returned when the bundler cannot be queried at all.
var ErrBundlerUnavailable = errors.New("bundler is unavailable")

// Capabilities answers which optional bundler features may be used.
type Capabilities interface {
	SupportsVersionStamp() bool
	SupportsSignedAppName() bool
	SupportsSignIdentity() bool
}

// Features is the probe result: one flag per optional bundler feature.
type Features struct {
	VersionStamp  bool `yaml:"version_stamp"`
	SignedAppName bool `yaml:"signed_app_name"`
	SignIdentity  bool `yaml:"sign_identity"`
}

// SupportsVersionStamp reports whether the bundler accepts FlagVersionStamp.
func (f Features) SupportsVersionStamp() bool { return f.VersionStamp }

// SupportsSignedAppName reports whether the bundler accepts FlagSignedAppName.
func (f Features) SupportsSignedAppName() bool { return f.SignedAppName }

// SupportsSignIdentity reports whether the bundler accepts FlagSignIdentity.
func (f Features) SupportsSignIdentity() bool { return f.SignIdentity }

// ParseHelpText derives Features from the bundler's --help output.
func ParseHelpText(text string) Features {
	flags := make(map[string]struct{})

	for _, token := range strings.Fields(text) {
		token = strings.TrimRight(token, ",;")
		if name, _, found := strings.Cut(token, "="); found {
			token = name
		}

		if strings.HasPrefix(token, "--") {
			flags[token] = struct{}{}
		}
	}

	has := func(flag string) bool {
		_, ok := flags[flag]
		return ok
	}

	return Features{
		VersionStamp:  has(FlagVersionStamp),
		SignedAppName: has(FlagSignedAppName),
		SignIdentity:  has(FlagSignIdentity),
	}
}

// ProbeCapabilities asks the bundler for its help text once and parses it.
func ProbeCapabilities(ctx context.Context, runner common.Runner, cfg config.Config) (Features, error) {
	res, err := runner.Run(ctx, common.Command{
		Name: cfg.Tools.Python,
		Args: []string{"-m", "nuitka", "--help"},
	})
	if err != nil {
		return Features{}, fmt.Errorf("%w: %w: %s", ErrBundlerUnavailable, err, res.Combined())
	}

	return ParseHelpText(res.Stdout + "\n" + res.Stderr), nil
}
