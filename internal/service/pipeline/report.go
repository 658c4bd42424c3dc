package pipeline

import (
	"time"

	"go.uber.org/multierr"

	"github.com/richqaq/pastemd-packager/internal/service/bundler"
	"github.com/richqaq/pastemd-packager/internal/service/identity"
	"github.com/richqaq/pastemd-packager/internal/service/signing"
	"github.com/richqaq/pastemd-packager/internal/service/stager"
)

// Diagnostic is a non-fatal problem recorded by a stage.
type Diagnostic struct {
	Stage string
	Err   error
}

// Report summarizes a pipeline run.
type Report struct {
	Version      string           `yaml:"version"`
	Capabilities bundler.Features `yaml:"capabilities"`
	Invocation   []string         `yaml:"invocation"`
	BundlePath   string           `yaml:"bundle_path"`
	Reconcile    identity.Result  `yaml:"reconcile"`
	SignedAt     time.Time        `yaml:"signed_at"`
	Signature    signing.Summary  `yaml:"signature"`
	Install      stager.Result    `yaml:"install"`
	Diagnostics  []Diagnostic     `yaml:"-"`
}

// Warnings combines every recorded diagnostic into one error, or nil.
func (r *Report) Warnings() error {
	var err error

	for _, d := range r.Diagnostics {
		err = multierr.Append(err, d.Err)
	}

	return err
}
