package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richqaq/pastemd-packager/internal/logger"
)

// KeyBundleIdentifier is the manifest key holding the bundle identifier.
const KeyBundleIdentifier = "CFBundleIdentifier"

var (
	// ErrManifestUnreadable is returned when the manifest cannot be read.
	ErrManifestUnreadable = errors.New("manifest is unreadable")
	// ErrManifestUnwritable is returned when the manifest cannot be updated.
	ErrManifestUnwritable = errors.New("manifest is unwritable")
)

// Editor gets and sets string values of top-level manifest keys.
// Set inserts the key when it is absent. Commit persists pending changes.
type Editor interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Commit(ctx context.Context) error
}

// UsageDescription is a permission prompt text required in the manifest.
type UsageDescription struct {
	Key  string
	Text string
}

// DefaultUsageDescriptions returns the prompts PasteMD needs: Apple Events to drive
// Word, WPS and Excel, and Accessibility for the global hotkey and paste keystrokes.
func DefaultUsageDescriptions() []UsageDescription {
	return []UsageDescription{
		{
			Key:  "NSAppleEventsUsageDescription",
			Text: "PasteMD needs to control Word, WPS and Excel to insert converted Markdown into your document.",
		},
		{
			Key:  "NSAccessibilityUsageDescription",
			Text: "PasteMD needs accessibility access to listen for its global hotkey and to simulate paste keystrokes.",
		},
	}
}

// Result describes what Reconcile found and changed.
type Result struct {
	// PreviousIdentifier is the identifier found before reconciliation.
	PreviousIdentifier string `yaml:"previous_identifier"`
	// IdentifierPresent tells whether the identifier key existed.
	IdentifierPresent bool `yaml:"identifier_present"`
	// IdentifierCorrected tells whether the identifier had drifted and was rewritten.
	IdentifierCorrected bool `yaml:"identifier_corrected"`
	// DescriptionsUpdated lists description keys whose text was missing or stale.
	DescriptionsUpdated []string `yaml:"descriptions_updated"`
	// WrittenAt is when the manifest was last committed.
	WrittenAt time.Time `yaml:"written_at"`
}

// Reconcile sets the identifier to canonicalID when it differs and writes every
// description unconditionally. Applying it to a reconciled manifest changes nothing.
func Reconcile(ctx context.Context, editor Editor, canonicalID string, descriptions []UsageDescription) (Result, error) {
	var result Result

	current, present, err := editor.Get(ctx, KeyBundleIdentifier)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrManifestUnreadable, err)
	}

	result.PreviousIdentifier = current
	result.IdentifierPresent = present

	if !present || current != canonicalID {
		logger.InfoKV(ctx, "Bundle identifier drifted, correcting",
			"found", current, "present", present, "canonical", canonicalID)

		if err = editor.Set(ctx, KeyBundleIdentifier, canonicalID); err != nil {
			return result, fmt.Errorf("%w: set %s: %w", ErrManifestUnwritable, KeyBundleIdentifier, err)
		}

		result.IdentifierCorrected = true
	}

	for _, d := range descriptions {
		existing, ok, getErr := editor.Get(ctx, d.Key)
		if getErr != nil {
			return result, fmt.Errorf("%w: %w", ErrManifestUnreadable, getErr)
		}

		if !ok || existing != d.Text {
			result.DescriptionsUpdated = append(result.DescriptionsUpdated, d.Key)
		}

		if err = editor.Set(ctx, d.Key, d.Text); err != nil {
			return result, fmt.Errorf("%w: set %s: %w", ErrManifestUnwritable, d.Key, err)
		}
	}

	if err = editor.Commit(ctx); err != nil {
		return result, fmt.Errorf("%w: %w", ErrManifestUnwritable, err)
	}

	result.WrittenAt = time.Now()

	return result, nil
}
