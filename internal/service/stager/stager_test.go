package stager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/richqaq/pastemd-packager/internal/service/common"
	"github.com/richqaq/pastemd-packager/internal/service/common/mocks"
)

type fakeTerminator struct {
	names  []string
	killed int
	err    error
}

func (f *fakeTerminator) TerminateByName(_ context.Context, name string) (int, error) {
	f.names = append(f.names, name)

	return f.killed, f.err
}

func makeBundle(t *testing.T, root string) string {
	t.Helper()

	bundle := filepath.Join(root, "main.app")
	macos := filepath.Join(bundle, "Contents", "MacOS")

	require.NoError(t, os.MkdirAll(macos, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(macos, "PasteMD"), []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bundle, "Contents", "Info.plist"), []byte("<plist/>"), 0o644))

	if runtime.GOOS != "windows" {
		require.NoError(t, os.Symlink(filepath.Join("MacOS", "PasteMD"), filepath.Join(bundle, "Contents", "current")))
	}

	return bundle
}

func listTree(t *testing.T, root string) []string {
	t.Helper()

	var entries []string

	require.NoError(t, filepath.WalkDir(root, func(path string, _ os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(root, path)
		entries = append(entries, rel)

		return relErr
	}))

	return entries
}

// TestStage_FullReplacement leaves exactly the new bundle, with no residue of the old one.
func TestStage_FullReplacement(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	source := makeBundle(t, t.TempDir())
	root := t.TempDir()
	target := filepath.Join(root, "PasteMD.app")

	require.NoError(t, os.MkdirAll(filepath.Join(target, "Contents", "Resources", "old"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "Contents", "stale.dylib"), []byte("old"), 0o644))

	runner.EXPECT().Start(gomock.Any(), common.Command{Name: "open", Args: []string{target}}).Return(nil)

	term := &fakeTerminator{killed: 1}

	res, err := New(runner, term, "open").Stage(context.Background(), Request{
		Source:      source,
		Target:      target,
		ProcessName: "PasteMD",
		Launch:      true,
	})
	require.NoError(t, err)
	require.NoError(t, res.Warnings)
	require.True(t, res.Launched)
	require.Equal(t, 1, res.Terminated)
	require.Equal(t, []string{"PasteMD"}, term.names)

	require.Equal(t, listTree(t, source), listTree(t, target))

	top, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, top, 1)

	info, err := os.Stat(filepath.Join(target, "Contents", "MacOS", "PasteMD"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	if runtime.GOOS != "windows" {
		link, linkErr := os.Readlink(filepath.Join(target, "Contents", "current"))
		require.NoError(t, linkErr)
		require.Equal(t, filepath.Join("MacOS", "PasteMD"), link)
	}
}

// TestStage_LaunchFailureIsWarning keeps the installation successful.
func TestStage_LaunchFailureIsWarning(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	source := makeBundle(t, t.TempDir())
	target := filepath.Join(t.TempDir(), "PasteMD.app")

	runner.EXPECT().Start(gomock.Any(), gomock.Any()).Return(common.ErrToolNotFound)

	res, err := New(runner, &fakeTerminator{err: errors.New("no process table")}, "open").Stage(
		context.Background(),
		Request{Source: source, Target: target, ProcessName: "PasteMD", Launch: true},
	)
	require.NoError(t, err)
	require.False(t, res.Launched)
	require.ErrorIs(t, res.Warnings, ErrLaunchFailed)
	require.ErrorIs(t, res.Warnings, ErrTerminateFailed)

	_, err = os.Stat(filepath.Join(target, "Contents", "Info.plist"))
	require.NoError(t, err)
}

// TestStage_NoLaunch does not touch the runner.
func TestStage_NoLaunch(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	source := makeBundle(t, t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "PasteMD.app")

	res, err := New(mocks.NewMockRunner(ctrl), nil, "open").Stage(context.Background(), Request{Source: source, Target: target})
	require.NoError(t, err)
	require.False(t, res.Launched)
	require.DirExists(t, target)
}

// TestStage_Preconditions rejects a missing source and an in-place install.
func TestStage_Preconditions(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	s := New(mocks.NewMockRunner(ctrl), nil, "open")
	dir := t.TempDir()

	_, err := s.Stage(context.Background(), Request{Source: filepath.Join(dir, "none.app"), Target: filepath.Join(dir, "PasteMD.app")})
	require.ErrorIs(t, err, ErrSourceMissing)

	source := makeBundle(t, dir)

	_, err = s.Stage(context.Background(), Request{Source: source, Target: source + "/"})
	require.ErrorIs(t, err, ErrSameLocation)
}

// TestProcessTerminator_NoMatch kills nothing when no process carries the name.
func TestProcessTerminator_NoMatch(t *testing.T) {
	t.Parallel()

	killed, err := ProcessTerminator{}.TerminateByName(context.Background(), "pastemd-definitely-not-running")
	require.NoError(t, err)
	require.Zero(t, killed)
}
