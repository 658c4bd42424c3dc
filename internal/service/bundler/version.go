package bundler

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/richqaq/pastemd-packager/internal/config"
	"github.com/richqaq/pastemd-packager/internal/service/common"
)

var (
	// ErrVersionUnreadable is returned when package metadata cannot be read.
	ErrVersionUnreadable = errors.New("application version is unreadable")
	// ErrVersionMalformed is returned when the reported version is not a version string.
	ErrVersionMalformed = errors.New("application version is malformed")

	versionPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)*([-+.]?[0-9A-Za-z]+)*$`)
	modulePattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

// ResolveVersion returns the application version. An explicit cfg.Version wins;
// otherwise the package module is imported by an isolated interpreter (-I ignores
// PYTHON* variables and the user site) and its __version__ is printed.
func ResolveVersion(ctx context.Context, runner common.Runner, cfg config.Config) (string, error) {
	if cfg.Version != "" {
		return parseVersion(cfg.Version)
	}

	if !modulePattern.MatchString(cfg.PackageModule) {
		return "", fmt.Errorf("%w: invalid module name %q", ErrVersionUnreadable, cfg.PackageModule)
	}

	script := fmt.Sprintf(
		"import importlib, sys; sys.path.insert(0, '.'); print(importlib.import_module('%s').__version__)",
		cfg.PackageModule,
	)

	res, err := runner.Run(ctx, common.Command{
		Name: cfg.Tools.Python,
		Args: []string{"-I", "-c", script},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w: %s", ErrVersionUnreadable, err, res.Combined())
	}

	return parseVersion(lastLine(res.Stdout))
}

// parseVersion validates the version string.
func parseVersion(output string) (string, error) {
	v := strings.TrimSpace(output)
	if !versionPattern.MatchString(v) {
		return "", fmt.Errorf("%w: %q", ErrVersionMalformed, v)
	}

	return v, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")

	return lines[len(lines)-1]
}
