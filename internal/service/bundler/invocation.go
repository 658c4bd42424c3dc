package bundler

import (
	"slices"
	"strings"

	"github.com/richqaq/pastemd-packager/internal/config"
	"github.com/richqaq/pastemd-packager/internal/service/common"
)

// Invocation is the assembled bundler argument list. It is never mutated after Assemble.
type Invocation struct {
	args []string
}

// Assemble builds the bundler command line. Mandatory arguments are always present;
// each optional flag is added only when caps reports support for it.
func Assemble(cfg config.Config, caps Capabilities) Invocation {
	args := []string{
		"-m", "nuitka",
		"--standalone",
		"--macos-create-app-bundle",
		"--assume-yes-for-downloads",
		"--output-dir=" + cfg.OutputDir,
		"--output-filename=" + cfg.AppName,
		"--macos-app-name=" + cfg.AppName,
	}

	if cfg.Icon != "" {
		args = append(args, "--macos-app-icon="+cfg.Icon)
	}

	for _, inc := range cfg.IncludeData {
		flag := "--include-data-dir="
		if inc.Kind == config.DataKindFile {
			flag = "--include-data-files="
		}

		args = append(args, flag+inc.Source+"="+inc.Target)
	}

	if caps.SupportsVersionStamp() && cfg.Version != "" {
		args = append(args, FlagVersionStamp+"="+cfg.Version)
	}

	if caps.SupportsSignedAppName() {
		args = append(args, FlagSignedAppName+"="+cfg.BundleID)
	}

	if caps.SupportsSignIdentity() && cfg.SignIdentity != "" {
		args = append(args, FlagSignIdentity+"="+cfg.SignIdentity)
	}

	args = append(args, cfg.EntryPoint)

	return Invocation{args: args}
}

// Args returns a copy of the argument list.
func (i Invocation) Args() []string {
	return slices.Clone(i.args)
}

// Has reports whether a flag (with or without a value) is part of the invocation.
func (i Invocation) Has(flag string) bool {
	for _, arg := range i.args {
		if arg == flag || strings.HasPrefix(arg, flag+"=") {
			return true
		}
	}

	return false
}

// Command binds the invocation to an interpreter.
func (i Invocation) Command(python string) common.Command {
	return common.Command{Name: python, Args: i.Args()}
}
