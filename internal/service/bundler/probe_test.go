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

const modernHelp = `Usage: python -m nuitka [--mode=compilation_mode] [--run] [options] main_module.py

  macOS specific controls:
    --macos-create-app-bundle
                        When compiling for macOS, create a bundle rather than a plain binary.
    --macos-app-icon=ICON_PATH
                        Add icon for the application bundle to use.
    --macos-signed-app-name=MACOS_SIGNED_APP_NAME
                        Name of the application to use for macOS signing.
    --macos-app-name=MACOS_APP_NAME
                        Name of the product to use in macOS bundle information.
    --macos-app-version=MACOS_APP_VERSION
                        Product version to use in macOS bundle information.
    --macos-sign-identity=MACOS_APP_VERSION
                        When signing on macOS, by default an ad-hoc identify will be used.
`

const legacyHelp = `Usage: python -m nuitka [options] main_module.py
    --standalone        Enable standalone mode for output.
    --macos-create-app-bundle
    --macos-app-name=MACOS_APP_NAME
    --macos-app-versions-are-not-a-thing
`

// TestParseHelpText detects each optional flag independently.
func TestParseHelpText(t *testing.T) {
	t.Parallel()

	require.Equal(t, Features{VersionStamp: true, SignedAppName: true, SignIdentity: true}, ParseHelpText(modernHelp))
	require.Equal(t, Features{}, ParseHelpText(legacyHelp))
	require.Equal(t, Features{SignIdentity: true}, ParseHelpText("  --macos-sign-identity=IDENTITY, --foo"))
}

// TestProbeCapabilities runs the bundler help once and parses stdout and stderr.
func TestProbeCapabilities(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	cfg := config.Default()

	runner.EXPECT().
		Run(gomock.Any(), common.Command{Name: "python3", Args: []string{"-m", "nuitka", "--help"}}).
		Return(common.Result{Stdout: legacyHelp, Stderr: "--macos-app-version=V"}, nil)

	caps, err := ProbeCapabilities(context.Background(), runner, cfg)
	require.NoError(t, err)
	require.True(t, caps.SupportsVersionStamp())
	require.False(t, caps.SupportsSignedAppName())
	require.False(t, caps.SupportsSignIdentity())
}

// TestProbeCapabilities_Unreachable is fatal when the bundler cannot be run.
func TestProbeCapabilities_Unreachable(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)

	runner.EXPECT().
		Run(gomock.Any(), gomock.Any()).
		Return(common.Result{Stderr: "No module named nuitka", ExitCode: 1}, common.ErrNonZeroExit)

	_, err := ProbeCapabilities(context.Background(), runner, config.Default())
	require.ErrorIs(t, err, ErrBundlerUnavailable)
	require.ErrorIs(t, err, common.ErrNonZeroExit)
	require.Contains(t, err.Error(), "No module named nuitka")
}
