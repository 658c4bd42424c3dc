package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields and format validations for Config.
func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Validate(Default()))

	cfg := Default()
	cfg.AppName = " "
	require.ErrorIs(t, Validate(cfg), errAppNameRequired)

	cfg = Default()
	cfg.BundleID = ""
	require.ErrorIs(t, Validate(cfg), errBundleIDRequired)

	cfg = Default()
	cfg.BundleID = "pastemd"
	require.ErrorIs(t, Validate(cfg), errBundleIDMalformed)

	cfg = Default()
	cfg.ManifestEditor = "vim"
	require.ErrorIs(t, Validate(cfg), errUnknownEditor)

	cfg = Default()
	cfg.IncludeData = []DataInclusion{{Source: "x", Target: "x", Kind: "zip"}}
	require.ErrorIs(t, Validate(cfg), errUnknownDataKind)
}

// TestLoad_MissingFile returns defaults unless the file is required.
func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing.yaml")

	cfg, err := Load(path, false)
	require.NoError(t, err)
	require.Equal(t, Default().BundleID, cfg.BundleID)

	_, err = Load(path, true)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back on top of defaults.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")

	require.NoError(t, os.WriteFile(path, []byte("bundle_id: com.example.app\ntools:\n  python: /opt/python3\n"), 0o600))

	cfg, err := Load(path, true)
	require.NoError(t, err)
	require.Equal(t, "com.example.app", cfg.BundleID)
	require.Equal(t, "/opt/python3", cfg.Tools.Python)
	require.Equal(t, "codesign", cfg.Tools.Codesign)
	require.Equal(t, "PasteMD", cfg.AppName)

	out := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, Save(out, cfg))

	loaded, err := Load(out, true)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

// TestApplyEnv overlays environment values through the injected lookup.
func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		EnvSignIdentity: "Developer ID Application: RICHQAQ (ABCDE12345)",
		EnvInstallRoot:  "/tmp/apps",
		EnvVerbose:      "true",
		EnvPython:       "/usr/local/bin/python3.12",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg, err := ApplyEnv(Default(), lookup)
	require.NoError(t, err)
	require.Equal(t, env[EnvSignIdentity], cfg.SignIdentity)
	require.Equal(t, "/tmp/apps", cfg.InstallRoot)
	require.True(t, cfg.Verbose)
	require.Equal(t, env[EnvPython], cfg.Tools.Python)

	env[EnvVerbose] = "loud"

	_, err = ApplyEnv(Default(), lookup)
	require.Error(t, err)
}

// TestPaths derives bundle and install paths from the configuration.
func TestPaths(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.OutputDir = "out"
	cfg.InstallRoot = "/Users/me/Applications"

	require.Equal(t, filepath.Join("out", "main.app"), cfg.BundlePath())
	require.Equal(t, filepath.Join("/Users/me/Applications", "PasteMD.app"), cfg.InstallPath())

	stamped := cfg.WithVersion("1.2.3")
	require.Equal(t, "1.2.3", stamped.Version)
	require.Empty(t, cfg.Version)
}
