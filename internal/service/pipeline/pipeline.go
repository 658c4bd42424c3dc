package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/richqaq/pastemd-packager/internal/config"
	"github.com/richqaq/pastemd-packager/internal/logger"
	"github.com/richqaq/pastemd-packager/internal/repository/manifest"
	"github.com/richqaq/pastemd-packager/internal/service/bundler"
	"github.com/richqaq/pastemd-packager/internal/service/common"
	"github.com/richqaq/pastemd-packager/internal/service/identity"
	"github.com/richqaq/pastemd-packager/internal/service/signing"
	"github.com/richqaq/pastemd-packager/internal/service/stager"
)

var (
	// ErrFatalPrecondition marks a required tool or file that is absent.
	ErrFatalPrecondition = errors.New("fatal precondition")
	// ErrSignatureStale is returned when the signature predates the last manifest write.
	ErrSignatureStale = errors.New("signature predates manifest write")
)

// Options are inputs accepted by the pipeline entry point.
type Options struct {
	// Config is the validated build configuration.
	Config config.Config
	// Runner invokes external tools.
	Runner common.Runner
	// Terminator stops running instances before installation; nil skips that step.
	Terminator stager.Terminator
	// Install copies the signed bundle to the install path.
	Install bool
	// Launch starts the installed bundle. Ignored without Install.
	Launch bool
	// Clock stamps signatures; nil means time.Now.
	Clock func() time.Time
}

// stage is one step of the run.
type stage struct {
	name string
	run  func(ctx context.Context) error
}

// builder holds the state threaded through a single run.
// It is unexported; use Run.
type builder struct {
	opts   Options
	cfg    config.Config
	signer *signing.Controller
	caps   bundler.Features
	inv    bundler.Invocation
	report *Report
	stage  string
}

// Run executes every stage in order and returns the report. The returned error
// is non-nil only for fatal conditions; diagnostics are in Report.Diagnostics.
func Run(ctx context.Context, opts Options) (*Report, error) {
	ctx = logger.WithName(ctx, "pastemd-packager")

	b := &builder{
		opts:   opts,
		cfg:    opts.Config,
		signer: signing.NewController(opts.Runner, opts.Config),
		report: &Report{BundlePath: opts.Config.BundlePath()},
	}

	if opts.Clock != nil {
		b.signer.SetClock(opts.Clock)
	}

	if actor, err := common.DetectActor(); err == nil {
		logger.InfoKV(ctx, "Starting packaging run",
			"app", b.cfg.AppName, "bundle_id", b.cfg.BundleID, "host", actor.Hostname, "user", actor.Username)
	}

	for _, s := range b.stages() {
		b.stage = s.name
		stageCtx := logger.WithKV(ctx, "stage", s.name)

		logger.DebugKV(stageCtx, "Stage started")

		if err := s.run(stageCtx); err != nil {
			logger.ErrorKV(stageCtx, "Stage failed", "error", err)

			return b.report, fmt.Errorf("%s: %w", s.name, err)
		}
	}

	if warnings := b.report.Warnings(); warnings != nil {
		logger.WarnKV(ctx, "Packaging finished with warnings", "count", len(multierr.Errors(warnings)))
	} else {
		logger.Info(ctx, "Packaging finished")
	}

	return b.report, nil
}

func (b *builder) stages() []stage {
	stages := []stage{
		{name: "preconditions", run: b.checkPreconditions},
		{name: "identity", run: b.checkIdentity},
		{name: "version", run: b.resolveVersion},
		{name: "probe", run: b.probe},
		{name: "assemble", run: b.assemble},
		{name: "bundle", run: b.bundle},
		{name: "reconcile", run: b.reconcile},
		{name: "sign", run: b.sign},
		{name: "verify", run: b.verify},
	}

	if b.opts.Install {
		stages = append(stages, stage{name: "install", run: b.install})
	}

	return stages
}

// warn records a diagnostic for the current stage.
func (b *builder) warn(ctx context.Context, err error) {
	logger.WarnKV(ctx, "Non-fatal problem", "error", err)

	b.report.Diagnostics = append(b.report.Diagnostics, Diagnostic{Stage: b.stage, Err: err})
}

func (b *builder) checkPreconditions(_ context.Context) error {
	if b.cfg.SignIdentity == "" {
		return fmt.Errorf("%w: %w (set %s)", ErrFatalPrecondition, signing.ErrIdentityRequired, config.EnvSignIdentity)
	}

	required := []string{b.cfg.Tools.Python, b.cfg.Tools.Codesign}
	if b.cfg.ManifestEditor == config.EditorPlistBuddy {
		required = append(required, b.cfg.Tools.PlistBuddy)
	}

	for _, tool := range required {
		if _, err := b.opts.Runner.LookPath(tool); err != nil {
			return fmt.Errorf("%w: %w", ErrFatalPrecondition, err)
		}
	}

	return nil
}

func (b *builder) checkIdentity(ctx context.Context) error {
	if err := b.signer.CheckIdentity(ctx); err != nil {
		b.warn(ctx, err)
	}

	return nil
}

func (b *builder) resolveVersion(ctx context.Context) error {
	v, err := bundler.ResolveVersion(ctx, b.opts.Runner, b.cfg)
	if err != nil {
		return err
	}

	b.cfg = b.cfg.WithVersion(v)
	b.report.Version = v

	logger.InfoKV(ctx, "Resolved application version", "version", v)

	return nil
}

func (b *builder) probe(ctx context.Context) error {
	caps, err := bundler.ProbeCapabilities(ctx, b.opts.Runner, b.cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFatalPrecondition, err)
	}

	b.caps = caps
	b.report.Capabilities = caps

	logger.InfoKV(ctx, "Probed bundler capabilities",
		"version_stamp", caps.VersionStamp, "signed_app_name", caps.SignedAppName, "sign_identity", caps.SignIdentity)

	return nil
}

func (b *builder) assemble(_ context.Context) error {
	b.inv = bundler.Assemble(b.cfg, b.caps)
	b.report.Invocation = b.inv.Args()

	return nil
}

func (b *builder) bundle(ctx context.Context) error {
	logger.InfoKV(ctx, "Running bundler", "output", b.report.BundlePath)

	err := bundler.Invoke(ctx, b.opts.Runner, b.cfg.Tools.Python, b.inv, b.report.BundlePath)
	if errors.Is(err, bundler.ErrBundleMissing) {
		return fmt.Errorf("%w: %w", ErrFatalPrecondition, err)
	}

	return err
}

func (b *builder) reconcile(ctx context.Context) error {
	path := manifest.InfoPlistPath(b.report.BundlePath)

	var editor identity.Editor

	switch b.cfg.ManifestEditor {
	case config.EditorPlistBuddy:
		editor = identity.NewPlistBuddy(b.opts.Runner, b.cfg.Tools.PlistBuddy, path)
	default:
		f, err := manifest.Open(path)
		if errors.Is(err, manifest.ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrFatalPrecondition, err)
		}

		if err != nil {
			return fmt.Errorf("%w: %w", identity.ErrManifestUnreadable, err)
		}

		editor = f
	}

	res, err := identity.Reconcile(ctx, editor, b.cfg.BundleID, identity.DefaultUsageDescriptions())
	if err != nil {
		return err
	}

	b.report.Reconcile = res

	logger.InfoKV(ctx, "Manifest reconciled",
		"previous_identifier", res.PreviousIdentifier,
		"corrected", res.IdentifierCorrected,
		"descriptions_updated", res.DescriptionsUpdated)

	return nil
}

func (b *builder) sign(ctx context.Context) error {
	signedAt, err := b.signer.Sign(ctx, b.report.BundlePath)
	if err != nil {
		return err
	}

	if signedAt.Before(b.report.Reconcile.WrittenAt) {
		return fmt.Errorf("%w: signed %s, manifest written %s",
			ErrSignatureStale, signedAt, b.report.Reconcile.WrittenAt)
	}

	b.report.SignedAt = signedAt

	logger.InfoKV(ctx, "Bundle signed", "identity", b.cfg.SignIdentity)

	return nil
}

func (b *builder) verify(ctx context.Context) error {
	if err := b.signer.Verify(ctx, b.report.BundlePath); err != nil {
		b.warn(ctx, err)
	}

	summary, err := b.signer.Summary(ctx, b.report.BundlePath)
	if err != nil {
		b.warn(ctx, err)
	}

	b.report.Signature = summary

	logger.InfoKV(ctx, "Signature summary",
		"identifier", summary.Identifier,
		"team_identifier", summary.TeamIdentifier,
		"authority", summary.Authorities)

	return nil
}

func (b *builder) install(ctx context.Context) error {
	s := stager.New(b.opts.Runner, b.opts.Terminator, b.cfg.Tools.Open)

	res, err := s.Stage(ctx, stager.Request{
		Source:      b.report.BundlePath,
		Target:      b.cfg.InstallPath(),
		ProcessName: b.cfg.AppName,
		Launch:      b.opts.Launch,
	})
	b.report.Install = res

	if err != nil {
		return err
	}

	for _, w := range multierr.Errors(res.Warnings) {
		b.warn(ctx, w)
	}

	logger.InfoKV(ctx, "Bundle installed", "path", res.InstalledPath, "launched", res.Launched)

	return nil
}
