package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/richqaq/pastemd-packager/internal/config"
	"github.com/richqaq/pastemd-packager/internal/logger"
	"github.com/richqaq/pastemd-packager/internal/service/common"
	"github.com/richqaq/pastemd-packager/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// verbose switches logging to debug and streams tool output.
	verbose bool

	// rootCmd represents the base command for packaging PasteMD.
	rootCmd = &cobra.Command{
		Use:   "pastemd-packager",
		Short: "Build, sign and install PasteMD desktop packages",
		Long: `Packages PasteMD for distribution.

On macOS "build" bundles the application with Nuitka, reconciles the bundle
identifier in Info.plist, re-signs and verifies the bundle and installs it to a
fixed location. On Windows "installer" renders the Inno Setup script and
optionally compiles the setup executable.

Settings are read from the configuration file, then from PASTEMD_* environment
variables, then from flags.`,
		SilenceUsage: true,
	}
)

// Execute runs the pastemd-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext cancels on SIGTERM and SIGINT.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// loadConfig builds the configuration once: file, environment, then flags.
// overlay applies command-specific flags before validation.
func loadConfig(cmd *cobra.Command, overlay func(*config.Config)) (config.Config, error) {
	cfg, err := config.Load(configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return cfg, err
	}

	if cfg, err = config.ApplyEnv(cfg, os.LookupEnv); err != nil {
		return cfg, err
	}

	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = verbose
	}

	if overlay != nil {
		overlay(&cfg)
	}

	if err = config.Validate(cfg); err != nil {
		return cfg, err
	}

	logger.SetVerbose(cfg.Verbose)

	return cfg, nil
}

// newRunner streams tool output to stderr in verbose mode.
func newRunner(cfg config.Config) *common.ExecRunner {
	var stream io.Writer
	if cfg.Verbose {
		stream = os.Stderr
	}

	return common.NewExecRunner(stream)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "log every tool invocation and its output")
}
