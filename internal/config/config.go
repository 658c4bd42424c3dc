package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the build configuration shared by every pipeline stage.
// It is constructed once per run and passed by value.
type Config struct {
	// AppName is the display name of the application and the installed bundle name.
	AppName string `yaml:"app_name"`
	// BundleID is the canonical bundle identifier the OS uses to remember permissions.
	BundleID string `yaml:"bundle_id"`
	// Version overrides the version resolved from package metadata when set.
	Version string `yaml:"version"`
	// SignIdentity references a code signing certificate in the login keychain.
	SignIdentity string `yaml:"sign_identity"`
	// EntryPoint is the application's main script handed to the bundler.
	EntryPoint string `yaml:"entry_point"`
	// PackageModule is the importable package that carries __version__.
	PackageModule string `yaml:"package_module"`
	// OutputDir is where the bundler writes the produced bundle.
	OutputDir string `yaml:"output_dir"`
	// InstallRoot is the directory the bundle is installed into.
	InstallRoot string `yaml:"install_root"`
	// Icon is the bundle icon passed to the bundler.
	Icon string `yaml:"icon"`
	// IncludeData lists resources the bundler must copy into the bundle.
	IncludeData []DataInclusion `yaml:"include_data"`
	// Verbose switches logging to debug and streams tool output.
	Verbose bool `yaml:"verbose"`
	// ManifestEditor selects how Info.plist is edited: "native" or "plistbuddy".
	ManifestEditor string `yaml:"manifest_editor"`
	// Tools holds paths of external tools.
	Tools Tools `yaml:"tools"`
	// Windows holds settings of the installer descriptor track.
	Windows Windows `yaml:"windows"`
}

// DataInclusion is a resource-inclusion entry of the bundler command line.
type DataInclusion struct {
	// Source is the path on the build machine.
	Source string `yaml:"source"`
	// Target is the path inside the bundle.
	Target string `yaml:"target"`
	// Kind is either "dir" or "file".
	Kind string `yaml:"kind"`
}

// Tools holds overridable paths of the external collaborators.
type Tools struct {
	Python             string `yaml:"python"`
	Codesign           string `yaml:"codesign"`
	Security           string `yaml:"security"`
	PlistBuddy         string `yaml:"plistbuddy"`
	Open               string `yaml:"open"`
	InstallerGenerator string `yaml:"installer_generator"`
}

// Windows configures the installer descriptor.
type Windows struct {
	// Publisher is shown in Programs and Features.
	Publisher string `yaml:"publisher"`
	// AUMID is the Application User Model ID shared by shortcuts and registry entries.
	AUMID string `yaml:"aumid"`
	// AppID is the stable installer identity used to detect upgrades.
	AppID string `yaml:"app_id"`
	// ExeName is the main executable inside SourceDir.
	ExeName string `yaml:"exe_name"`
	// SourceDir is the bundler's Windows output directory.
	SourceDir string `yaml:"source_dir"`
	// Icon is the .ico file used by shortcuts and the AUMID registration.
	Icon string `yaml:"icon"`
	// OutputDir receives the generated script and setup executable.
	OutputDir string `yaml:"output_dir"`
	// URL is the publisher URL.
	URL string `yaml:"url"`
	// Descriptor optionally points to a YAML installer descriptor replacing the default one.
	Descriptor string `yaml:"descriptor"`
}

const (
	// DefaultConfigFilename is the default filename for packager settings.
	DefaultConfigFilename = "pastemd-packager.yaml"

	// DefaultFilePermissions is the default file permission for generated files.
	DefaultFilePermissions = 0o644

	// EditorNative edits Info.plist in-process.
	EditorNative = "native"
	// EditorPlistBuddy edits Info.plist through /usr/libexec/PlistBuddy.
	EditorPlistBuddy = "plistbuddy"

	// DataKindDir includes a directory.
	DataKindDir = "dir"
	// DataKindFile includes a single file.
	DataKindFile = "file"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvSignIdentity = "PASTEMD_SIGN_IDENTITY"
	EnvInstallRoot  = "PASTEMD_INSTALL_ROOT"
	EnvVerbose      = "PASTEMD_VERBOSE"
	EnvPython       = "PASTEMD_PYTHON"
	EnvOutputDir    = "PASTEMD_OUTPUT_DIR"
)

var (
	errAppNameRequired    = errors.New("app name must be provided")
	errBundleIDRequired   = errors.New("bundle identifier must be provided")
	errBundleIDMalformed  = errors.New("bundle identifier must be reverse-DNS")
	errEntryPointRequired = errors.New("entry point must be provided")
	errUnknownEditor      = errors.New("unknown manifest editor")
	errUnknownDataKind    = errors.New("unknown include_data kind")

	bundleIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]+(\.[A-Za-z0-9-]+)+$`)
)

// Default returns the configuration used when no settings file is present.
func Default() Config {
	return Config{
		AppName:        "PasteMD",
		BundleID:       "com.richqaq.pastemd",
		EntryPoint:     "main.py",
		PackageModule:  "pastemd",
		OutputDir:      "dist",
		InstallRoot:    defaultInstallRoot(),
		Icon:           filepath.Join("assets", "icons", "logo.icns"),
		ManifestEditor: EditorNative,
		IncludeData: []DataInclusion{
			{Source: filepath.Join("assets", "icons"), Target: filepath.Join("assets", "icons"), Kind: DataKindDir},
			{Source: filepath.Join("pastemd", "i18n", "locales"), Target: filepath.Join("pastemd", "i18n", "locales"), Kind: DataKindDir},
		},
		Tools: Tools{
			Python:             "python3",
			Codesign:           "codesign",
			Security:           "security",
			PlistBuddy:         "/usr/libexec/PlistBuddy",
			Open:               "open",
			InstallerGenerator: "iscc",
		},
		Windows: Windows{
			Publisher: "RICHQAQ",
			AUMID:     "RICHQAQ.PasteMD",
			AppID:     "{{5C1F3B9E-7A2D-4E8B-9C6F-2D4A8E1B7F30}",
			ExeName:   "PasteMD.exe",
			SourceDir: filepath.Join("dist", "PasteMD.dist"),
			Icon:      filepath.Join("assets", "icons", "logo.ico"),
			OutputDir: filepath.Join("dist", "installer"),
			URL:       "https://github.com/RICHQAQ/PasteMD",
		},
	}
}

// Load reads configuration from path on top of Default.
// A missing file is only an error when required is set.
func Load(path string, required bool) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return cfg, nil
		}

		return cfg, fmt.Errorf("read settings: %w", err)
	}

	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal settings: %w", err)
	}

	return cfg, nil
}

// Save writes cfg to path in YAML format.
func Save(path string, cfg Config) error {
	if path == "" {
		path = DefaultConfigFilename
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// ApplyEnv overlays values from the invoking environment.
// lookup has the signature of os.LookupEnv.
func ApplyEnv(cfg Config, lookup func(string) (string, bool)) (Config, error) {
	if v, ok := lookup(EnvSignIdentity); ok && v != "" {
		cfg.SignIdentity = v
	}

	if v, ok := lookup(EnvInstallRoot); ok && v != "" {
		cfg.InstallRoot = v
	}

	if v, ok := lookup(EnvPython); ok && v != "" {
		cfg.Tools.Python = v
	}

	if v, ok := lookup(EnvOutputDir); ok && v != "" {
		cfg.OutputDir = v
	}

	if v, ok := lookup(EnvVerbose); ok && v != "" {
		verbose, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("parse %s: %w", EnvVerbose, err)
		}

		cfg.Verbose = verbose
	}

	return cfg, nil
}

// Validate checks the provided settings for required fields and formatting.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.AppName) == "" {
		return errAppNameRequired
	}

	if cfg.BundleID == "" {
		return errBundleIDRequired
	}

	if !bundleIDPattern.MatchString(cfg.BundleID) {
		return fmt.Errorf("%w: %q", errBundleIDMalformed, cfg.BundleID)
	}

	if cfg.EntryPoint == "" {
		return errEntryPointRequired
	}

	switch cfg.ManifestEditor {
	case EditorNative, EditorPlistBuddy:
	default:
		return fmt.Errorf("%w: %q", errUnknownEditor, cfg.ManifestEditor)
	}

	for _, inc := range cfg.IncludeData {
		if inc.Kind != DataKindDir && inc.Kind != DataKindFile {
			return fmt.Errorf("%w: %q for %s", errUnknownDataKind, inc.Kind, inc.Source)
		}
	}

	return nil
}

// WithVersion returns a copy of cfg stamped with the resolved version.
func (c Config) WithVersion(version string) Config {
	c.Version = version

	return c
}

// BundlePath is where the bundler is expected to leave the .app bundle.
func (c Config) BundlePath() string {
	stem := strings.TrimSuffix(filepath.Base(c.EntryPoint), filepath.Ext(c.EntryPoint))

	return filepath.Join(c.OutputDir, stem+".app")
}

// InstallPath is the fixed location of the installed bundle.
func (c Config) InstallPath() string {
	return filepath.Join(c.InstallRoot, c.AppName+".app")
}

// defaultInstallRoot resolves the per-user Applications directory.
func defaultInstallRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "Applications"
	}

	return filepath.Join(home, "Applications")
}
