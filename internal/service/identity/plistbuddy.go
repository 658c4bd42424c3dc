package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/richqaq/pastemd-packager/internal/service/common"
)

// PlistBuddy edits a manifest through /usr/libexec/PlistBuddy.
// Every Set is written immediately, so Commit has nothing to do.
type PlistBuddy struct {
	runner common.Runner
	tool   string
	path   string
}

// NewPlistBuddy creates an editor for the plist at path.
func NewPlistBuddy(runner common.Runner, tool, path string) *PlistBuddy {
	return &PlistBuddy{
		runner: runner,
		tool:   tool,
		path:   path,
	}
}

// Get prints the key; a "Does Not Exist" answer means the key is absent.
func (p *PlistBuddy) Get(ctx context.Context, key string) (string, bool, error) {
	res, err := p.exec(ctx, "Print :"+key)
	if err != nil {
		if errors.Is(err, common.ErrNonZeroExit) && strings.Contains(res.Combined(), "Does Not Exist") {
			return "", false, nil
		}

		return "", false, err
	}

	return strings.TrimRight(res.Stdout, "\n"), true, nil
}

// Set updates the key in place or adds it as a string.
func (p *PlistBuddy) Set(ctx context.Context, key, value string) error {
	_, present, err := p.Get(ctx, key)
	if err != nil {
		return err
	}

	verb := "Add :" + key + " string "
	if present {
		verb = "Set :" + key + " "
	}

	_, err = p.exec(ctx, verb+quote(value))

	return err
}

// Commit is a no-op.
func (p *PlistBuddy) Commit(context.Context) error {
	return nil
}

func (p *PlistBuddy) exec(ctx context.Context, command string) (common.Result, error) {
	res, err := p.runner.Run(ctx, common.Command{
		Name: p.tool,
		Args: []string{"-c", command, p.path},
	})
	if err != nil {
		return res, fmt.Errorf("plistbuddy %q: %w", command, err)
	}

	return res, nil
}

// quote wraps a value for the PlistBuddy command parser.
func quote(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)

	return `"` + r.Replace(value) + `"`
}
