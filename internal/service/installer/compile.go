package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/richqaq/pastemd-packager/internal/config"
	domain "github.com/richqaq/pastemd-packager/internal/domain/installer"
	"github.com/richqaq/pastemd-packager/internal/logger"
	"github.com/richqaq/pastemd-packager/internal/service/bundler"
	"github.com/richqaq/pastemd-packager/internal/service/common"
)

var (
	// ErrInvalidDescriptor wraps every violation reported by Validate.
	ErrInvalidDescriptor = errors.New("installer descriptor is invalid")
	// ErrGeneratorMissing is returned when compilation is requested without the generator.
	ErrGeneratorMissing = errors.New("installer generator not found")
	// ErrCompileFailed is returned when the generator exits unsuccessfully.
	ErrCompileFailed = errors.New("installer compilation failed")
)

// Options contains inputs for the installer entry point.
type Options struct {
	// Config is the validated build configuration.
	Config config.Config
	// Runner invokes the version resolver and the installer generator.
	Runner common.Runner
	// Compile runs the generator after the script is written.
	Compile bool
}

// Result describes the produced artifacts.
type Result struct {
	Descriptor     *domain.Descriptor
	ScriptPath     string
	DescriptorPath string
	// SetupPath is set only when the script was compiled.
	SetupPath string
}

// Run resolves and validates the descriptor, writes the script and the
// resolved descriptor to the installer output directory and optionally compiles.
func Run(ctx context.Context, opts Options) (*Result, error) {
	ctx = logger.WithName(ctx, "pastemd-installer")
	cfg := opts.Config

	d, err := Resolve(ctx, opts.Runner, cfg)
	if err != nil {
		return nil, err
	}

	if err = d.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}

	outDir, err := filepath.Abs(cfg.Windows.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}

	if err = os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	res := &Result{
		Descriptor:     d,
		ScriptPath:     filepath.Join(outDir, d.App.Name+".iss"),
		DescriptorPath: filepath.Join(outDir, d.App.Name+".installer.yaml"),
	}

	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal descriptor: %w", err)
	}

	if err = os.WriteFile(res.DescriptorPath, data, config.DefaultFilePermissions); err != nil {
		return nil, fmt.Errorf("write descriptor: %w", err)
	}

	script, err := scriptFor(d)
	if err != nil {
		return nil, err
	}

	if err = os.WriteFile(res.ScriptPath, []byte(script), config.DefaultFilePermissions); err != nil {
		return nil, fmt.Errorf("write script: %w", err)
	}

	logger.InfoKV(ctx, "Installer script written", "script", res.ScriptPath, "version", d.App.Version)

	if !opts.Compile {
		return res, nil
	}

	if res.SetupPath, err = compile(ctx, opts.Runner, cfg.Tools.InstallerGenerator, res.ScriptPath, outDir, d); err != nil {
		return res, err
	}

	logger.InfoKV(ctx, "Setup executable built", "path", res.SetupPath)

	return res, nil
}

// Resolve loads the configured descriptor or derives the default one.
// A descriptor without a version gets the resolved application version.
func Resolve(ctx context.Context, runner common.Runner, cfg config.Config) (*domain.Descriptor, error) {
	if cfg.Windows.Descriptor != "" {
		d, err := domain.Load(cfg.Windows.Descriptor)
		if err != nil {
			return nil, err
		}

		if d.App.Version == "" {
			if d.App.Version, err = bundler.ResolveVersion(ctx, runner, cfg); err != nil {
				return nil, fmt.Errorf("resolve version: %w", err)
			}
		}

		return d, nil
	}

	version, err := bundler.ResolveVersion(ctx, runner, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve version: %w", err)
	}

	return domain.NewDefault(domain.Defaults{
		AppID:     cfg.Windows.AppID,
		Name:      cfg.AppName,
		Version:   version,
		Publisher: cfg.Windows.Publisher,
		URL:       cfg.Windows.URL,
		AUMID:     cfg.Windows.AUMID,
		ExeName:   cfg.Windows.ExeName,
		SourceDir: cfg.Windows.SourceDir,
		Icon:      cfg.Windows.Icon,
	}), nil
}

// scriptFor renders d with host paths made absolute, since the generator
// resolves relative sources against the script directory.
func scriptFor(d *domain.Descriptor) (string, error) {
	abs := *d
	abs.Files = append([]domain.FileEntry(nil), d.Files...)

	for i := range abs.Files {
		p, err := filepath.Abs(abs.Files[i].Source)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", abs.Files[i].Source, err)
		}

		abs.Files[i].Source = p
	}

	if abs.App.Icon != "" {
		p, err := filepath.Abs(abs.App.Icon)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", abs.App.Icon, err)
		}

		abs.App.Icon = p
	}

	return Render(&abs), nil
}

func compile(
	ctx context.Context,
	runner common.Runner,
	tool, script, outDir string,
	d *domain.Descriptor,
) (string, error) {
	path, err := runner.LookPath(tool)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrGeneratorMissing, tool, err)
	}

	cmd := common.Command{Name: path, Args: []string{"/O" + outDir, script}}
	logger.DebugKV(ctx, "Compiling installer", "command", cmd.String())

	res, err := runner.Run(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("%w: %w: %s", ErrCompileFailed, err, res.Combined())
	}

	setup := filepath.Join(outDir, d.App.OutputName+".exe")
	if _, err = os.Stat(setup); err != nil {
		return "", fmt.Errorf("%w: %s not produced: %w", ErrCompileFailed, setup, err)
	}

	return setup, nil
}
