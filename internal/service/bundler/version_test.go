package bundler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/richqaq/pastemd-packager/internal/config"
	"github.com/richqaq/pastemd-packager/internal/service/common"
	"github.com/richqaq/pastemd-packager/internal/service/common/mocks"
)

// TestResolveVersion reads __version__ through an isolated interpreter.
func TestResolveVersion(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)

	runner.EXPECT().
		Run(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd common.Command) (common.Result, error) {
			require.Equal(t, "python3", cmd.Name)
			require.Equal(t, "-I", cmd.Args[0])
			require.Contains(t, cmd.Args[2], "import_module('pastemd')")

			return common.Result{Stdout: "some import noise\n0.1.6\n"}, nil
		})

	v, err := ResolveVersion(context.Background(), runner, config.Default())
	require.NoError(t, err)
	require.Equal(t, "0.1.6", v)
}

// TestResolveVersion_Override skips the interpreter when a version is configured.
func TestResolveVersion_Override(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)

	v, err := ResolveVersion(context.Background(), runner, config.Default().WithVersion("2.0.0b1"))
	require.NoError(t, err)
	require.Equal(t, "2.0.0b1", v)
}

// TestResolveVersion_Failures covers unreadable and malformed metadata.
func TestResolveVersion_Failures(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)

	runner.EXPECT().
		Run(gomock.Any(), gomock.Any()).
		Return(common.Result{Stderr: "ModuleNotFoundError: No module named 'pastemd'", ExitCode: 1}, common.ErrNonZeroExit)

	_, err := ResolveVersion(context.Background(), runner, config.Default())
	require.ErrorIs(t, err, ErrVersionUnreadable)

	runner.EXPECT().
		Run(gomock.Any(), gomock.Any()).
		Return(common.Result{Stdout: "None\n"}, nil)

	_, err = ResolveVersion(context.Background(), runner, config.Default())
	require.ErrorIs(t, err, ErrVersionMalformed)

	cfg := config.Default()
	cfg.PackageModule = "pastemd'); import os; ('"

	_, err = ResolveVersion(context.Background(), runner, cfg)
	require.ErrorIs(t, err, ErrVersionUnreadable)
}
