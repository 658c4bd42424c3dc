package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/richqaq/pastemd-packager/internal/config"
	"github.com/richqaq/pastemd-packager/internal/logger"
	"github.com/richqaq/pastemd-packager/internal/service/pipeline"
	"github.com/richqaq/pastemd-packager/internal/service/stager"
)

var (
	noInstall    bool
	noLaunch     bool
	signIdentity string
	installRoot  string

	// buildCmd runs the macOS packaging pipeline.
	buildCmd = &cobra.Command{
		Use:   "build",
		Short: "Bundle, sign and install the macOS application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			cfg, err := loadConfig(cmd, func(c *config.Config) {
				if signIdentity != "" {
					c.SignIdentity = signIdentity
				}

				if installRoot != "" {
					c.InstallRoot = installRoot
				}
			})
			if err != nil {
				return err
			}

			report, err := pipeline.Run(ctx, pipeline.Options{
				Config:     cfg,
				Runner:     newRunner(cfg),
				Terminator: stager.ProcessTerminator{},
				Install:    !noInstall,
				Launch:     !noLaunch,
			})
			if report != nil {
				logReport(ctx, report)
			}

			return err
		},
	}
)

func logReport(ctx context.Context, r *pipeline.Report) {
	logger.InfoKV(ctx, "Build report",
		"version", r.Version,
		"bundle", r.BundlePath,
		"identifier", r.Signature.Identifier,
		"identifier_corrected", r.Reconcile.IdentifierCorrected,
		"team", r.Signature.TeamIdentifier,
		"installed", r.Install.InstalledPath,
		"launched", r.Install.Launched)

	for _, w := range multierr.Errors(r.Warnings()) {
		logger.WarnKV(ctx, "Build warning", "error", w)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	buildCmd.Flags().BoolVar(&noInstall, "no-install", false, "stop after signing and verification")
	buildCmd.Flags().BoolVar(&noLaunch, "no-launch", false, "install without launching")
	buildCmd.Flags().StringVar(&signIdentity, "sign-identity", "", "code signing identity (overrides "+config.EnvSignIdentity+")")
	buildCmd.Flags().StringVar(&installRoot, "install-root", "", "directory the bundle is installed into (overrides "+config.EnvInstallRoot+")")

	rootCmd.AddCommand(buildCmd)
}
