package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/richqaq/pastemd-packager/internal/logger"
	"github.com/richqaq/pastemd-packager/internal/service/installer"
)

var (
	compile bool

	// installerCmd renders and optionally compiles the Windows installer.
	installerCmd = &cobra.Command{
		Use:   "installer",
		Short: "Render the Windows installer script",
		Long: `Derives the installer descriptor from the configuration (or loads
windows.descriptor), validates it and writes the Inno Setup script together with
the resolved descriptor. With --compile the installer generator builds the setup
executable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}

			_, err = installer.Run(ctx, installer.Options{
				Config:  cfg,
				Runner:  newRunner(cfg),
				Compile: compile,
			})

			return err
		},
	}

	// simulateCmd checks uninstall completeness without a Windows host.
	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Run install, upgrade and uninstall against an in-memory machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}

			d, err := installer.Resolve(ctx, newRunner(cfg), cfg)
			if err != nil {
				return err
			}

			if err = d.Validate(); err != nil {
				return fmt.Errorf("%w: %w", installer.ErrInvalidDescriptor, err)
			}

			sim, err := installer.Simulate(ctx, d)
			if err != nil {
				return err
			}

			logger.InfoKV(ctx, "Uninstall left no residue", "states", sim.History)

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	installerCmd.Flags().BoolVar(&compile, "compile", false, "compile the script with the installer generator")

	installerCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(installerCmd)
}
