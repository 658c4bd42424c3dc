package signing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/richqaq/pastemd-packager/internal/config"
	"github.com/richqaq/pastemd-packager/internal/logger"
	"github.com/richqaq/pastemd-packager/internal/service/common"
)

var (
	// ErrIdentityRequired is returned when no signing identity is configured.
	ErrIdentityRequired = errors.New("signing identity must be provided")
	// ErrIdentityNotFound is returned when the identity is absent from the trust store.
	ErrIdentityNotFound = errors.New("signing identity not found in keychain")
	// ErrSignFailed is returned when codesign cannot sign the bundle.
	ErrSignFailed = errors.New("codesign failed")
	// ErrVerificationFailed is returned when strict deep verification rejects the bundle.
	ErrVerificationFailed = errors.New("signature verification failed")
)

// Summary is the diagnostic view of a bundle signature.
type Summary struct {
	Identifier     string   `yaml:"identifier"`
	TeamIdentifier string   `yaml:"team_identifier"`
	Authorities    []string `yaml:"authorities"`
}

// Controller signs and verifies bundles.
type Controller struct {
	runner   common.Runner
	codesign string
	security string
	identity string
	verbose  bool
	clock    func() time.Time
	lastSign time.Time
}

// NewController creates a controller from the build configuration.
func NewController(runner common.Runner, cfg config.Config) *Controller {
	return &Controller{
		runner:   runner,
		codesign: cfg.Tools.Codesign,
		security: cfg.Tools.Security,
		identity: cfg.SignIdentity,
		verbose:  cfg.Verbose,
		clock:    time.Now,
	}
}

// CheckIdentity looks the identity up among valid code signing identities.
func (c *Controller) CheckIdentity(ctx context.Context) error {
	if c.identity == "" {
		return ErrIdentityRequired
	}

	res, err := c.runner.Run(ctx, common.Command{
		Name: c.security,
		Args: []string{"find-identity", "-v", "-p", "codesigning"},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIdentityNotFound, err)
	}

	if !strings.Contains(res.Stdout, c.identity) {
		return fmt.Errorf("%w: %q", ErrIdentityNotFound, c.identity)
	}

	return nil
}

// Sign signs bundle recursively, replacing any signature the bundler left behind.
// It returns the time the signature was produced.
func (c *Controller) Sign(ctx context.Context, bundle string) (time.Time, error) {
	if c.identity == "" {
		return time.Time{}, ErrIdentityRequired
	}

	args := []string{"--force", "--deep", "--sign", c.identity}
	if c.verbose {
		args = append(args, "--verbose")
	}

	args = append(args, bundle)

	cmd := common.Command{Name: c.codesign, Args: args}
	logger.DebugKV(ctx, "Signing bundle", "command", cmd.String())

	res, err := c.runner.Run(ctx, cmd)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w\n%s", ErrSignFailed, err, res.Combined())
	}

	c.lastSign = c.clock()

	return c.lastSign, nil
}

// SetClock replaces the time source used to stamp signatures.
func (c *Controller) SetClock(clock func() time.Time) {
	c.clock = clock
}

// SignedAt returns when Sign last succeeded.
func (c *Controller) SignedAt() time.Time {
	return c.lastSign
}

// Verify runs a deep strict verification.
func (c *Controller) Verify(ctx context.Context, bundle string) error {
	res, err := c.runner.Run(ctx, common.Command{
		Name: c.codesign,
		Args: []string{"--verify", "--deep", "--strict", "--verbose=2", bundle},
	})
	if err != nil {
		return fmt.Errorf("%w: %w\n%s", ErrVerificationFailed, err, res.Combined())
	}

	logger.DebugKV(ctx, "Signature verified", "output", res.Combined())

	return nil
}

// Summary reads identifier, team and authority chain of the bundle signature.
func (c *Controller) Summary(ctx context.Context, bundle string) (Summary, error) {
	res, err := c.runner.Run(ctx, common.Command{
		Name: c.codesign,
		Args: []string{"-dv", "--verbose=4", bundle},
	})
	if err != nil {
		return Summary{}, fmt.Errorf("display signature: %w\n%s", err, res.Combined())
	}

	// codesign -d writes its report to stderr.
	return ParseSummary(res.Stderr + "\n" + res.Stdout), nil
}

// ParseSummary extracts the diagnostic fields from `codesign -dv` output.
func ParseSummary(text string) Summary {
	var s Summary

	for _, line := range strings.Split(text, "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found {
			continue
		}

		switch key {
		case "Identifier":
			s.Identifier = value
		case "TeamIdentifier":
			s.TeamIdentifier = value
		case "Authority":
			s.Authorities = append(s.Authorities, value)
		}
	}

	return s
}
