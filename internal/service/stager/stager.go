package stager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/richqaq/pastemd-packager/internal/logger"
	"github.com/richqaq/pastemd-packager/internal/service/common"
)

var (
	// ErrSourceMissing is returned when the bundle to install does not exist.
	ErrSourceMissing = errors.New("bundle to install does not exist")
	// ErrSameLocation is returned when source and target are the same path.
	ErrSameLocation = errors.New("bundle is already at the install path")
	// ErrLaunchFailed wraps a failure to start the installed application.
	ErrLaunchFailed = errors.New("launch failed")
	// ErrTerminateFailed wraps a failure to stop a running instance.
	ErrTerminateFailed = errors.New("terminate running instance failed")
)

// Request describes one installation.
type Request struct {
	// Source is the signed bundle.
	Source string
	// Target is the fixed install path.
	Target string
	// ProcessName is the executable name of running instances to stop.
	ProcessName string
	// Launch starts the installed bundle after copying.
	Launch bool
}

// Result reports what Stage did.
type Result struct {
	InstalledPath string `yaml:"installed_path"`
	Terminated    int    `yaml:"terminated"`
	Launched      bool   `yaml:"launched"`
	// Warnings aggregates non-fatal failures (termination, launch).
	Warnings error `yaml:"-"`
}

// Stager replaces and launches the installed bundle.
type Stager struct {
	runner     common.Runner
	terminator Terminator
	openTool   string
}

// New creates a stager. openTool launches a bundle path (`open` on macOS).
func New(runner common.Runner, terminator Terminator, openTool string) *Stager {
	return &Stager{
		runner:     runner,
		terminator: terminator,
		openTool:   openTool,
	}
}

// Stage installs req.Source at req.Target. Errors returned are fatal;
// termination and launch problems are collected in Result.Warnings.
func (s *Stager) Stage(ctx context.Context, req Request) (Result, error) {
	result := Result{InstalledPath: req.Target}

	source, target := filepath.Clean(req.Source), filepath.Clean(req.Target)
	if source == target {
		return result, fmt.Errorf("%w: %s", ErrSameLocation, target)
	}

	info, err := os.Stat(source)
	if err != nil || !info.IsDir() {
		return result, fmt.Errorf("%w: %s", ErrSourceMissing, source)
	}

	if req.ProcessName != "" && s.terminator != nil {
		killed, termErr := s.terminator.TerminateByName(ctx, req.ProcessName)
		result.Terminated = killed

		if termErr != nil {
			result.Warnings = multierr.Append(result.Warnings, fmt.Errorf("%w: %w", ErrTerminateFailed, termErr))
		} else if killed > 0 {
			logger.InfoKV(ctx, "Terminated running instances", "name", req.ProcessName, "count", killed)
		}
	}

	if err = os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return result, fmt.Errorf("create install root: %w", err)
	}

	logger.InfoKV(ctx, "Removing previous installation", "path", target)

	if err = os.RemoveAll(target); err != nil {
		return result, fmt.Errorf("remove previous installation: %w", err)
	}

	logger.InfoKV(ctx, "Copying bundle", "from", source, "to", target)

	if err = copyTree(source, target); err != nil {
		return result, fmt.Errorf("copy bundle: %w", err)
	}

	if !req.Launch {
		return result, nil
	}

	if err = s.runner.Start(ctx, common.Command{Name: s.openTool, Args: []string{target}}); err != nil {
		result.Warnings = multierr.Append(result.Warnings, fmt.Errorf("%w: %w", ErrLaunchFailed, err))

		return result, nil
	}

	result.Launched = true

	return result, nil
}

// copyTree copies a directory tree preserving permissions and symlinks.
func copyTree(source, target string) error {
	return filepath.WalkDir(source, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}

		dest := filepath.Join(target, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			link, linkErr := os.Readlink(path)
			if linkErr != nil {
				return linkErr
			}

			return os.Symlink(link, dest)
		case d.IsDir():
			return os.MkdirAll(dest, info.Mode().Perm())
		default:
			return copyFile(path, dest, info.Mode().Perm())
		}
	})
}

func copyFile(source, dest string, mode fs.FileMode) (err error) {
	in, err := os.Open(source)
	if err != nil {
		return err
	}

	defer func() {
		err = multierr.Append(err, in.Close())
	}()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	defer func() {
		err = multierr.Append(err, out.Close())
	}()

	_, err = io.Copy(out, in)

	return err
}
