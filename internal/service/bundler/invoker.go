package bundler

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/richqaq/pastemd-packager/internal/logger"
	"github.com/richqaq/pastemd-packager/internal/service/common"
)

var (
	// ErrBundlerFailed is returned when the bundler exits with a non-zero status.
	ErrBundlerFailed = errors.New("bundler failed")
	// ErrBundleMissing is returned when the bundler reported success but left no bundle.
	ErrBundleMissing = errors.New("bundler produced no bundle")
)

// Invoke runs the bundler and checks that bundlePath exists afterwards.
// A bundle left over from an earlier run is removed first so that it cannot
// mask a run that produced nothing.
func Invoke(ctx context.Context, runner common.Runner, python string, inv Invocation, bundlePath string) error {
	if err := os.RemoveAll(bundlePath); err != nil {
		return fmt.Errorf("remove stale bundle %s: %w", bundlePath, err)
	}

	cmd := inv.Command(python)
	logger.DebugKV(ctx, "Running bundler", "command", cmd.String())

	res, err := runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("%w: %w\n%s", ErrBundlerFailed, err, res.Combined())
	}

	info, err := os.Stat(bundlePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrBundleMissing, bundlePath)
		}

		return fmt.Errorf("stat bundle: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrBundleMissing, bundlePath)
	}

	return nil
}
