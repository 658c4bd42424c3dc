package installer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Registry locations used by the descriptor.
const (
	RootCurrentUser = "HKCU"
	RunKey          = `Software\Microsoft\Windows\CurrentVersion\Run`
	AUMIDKeyPrefix  = `Software\Classes\AppUserModelId\`
)

// VersionPolicy decides whether an existing file is overwritten.
type VersionPolicy string

const (
	// PolicyIgnoreVersion always overwrites.
	PolicyIgnoreVersion VersionPolicy = "ignoreversion"
	// PolicyReplaceSameVersion overwrites files carrying the same version resource.
	PolicyReplaceSameVersion VersionPolicy = "replacesameversion"
)

// RemovalPolicy decides what happens to a registry entry on uninstall.
type RemovalPolicy string

const (
	// RemoveKeep leaves the entry behind.
	RemoveKeep RemovalPolicy = "keep"
	// RemoveValue deletes the value only.
	RemoveValue RemovalPolicy = "uninsdeletevalue"
	// RemoveKey deletes the whole key and its subkeys.
	RemoveKey RemovalPolicy = "uninsdeletekey"
)

// Purpose tags registry entries the validator reasons about.
type Purpose string

const (
	PurposeAutostart        Purpose = "autostart"
	PurposeAUMIDDisplayName Purpose = "aumid-display-name"
	PurposeAUMIDIcon        Purpose = "aumid-icon"
)

// Descriptor is the declarative installer specification.
type Descriptor struct {
	App       AppMetadata     `yaml:"app"`
	Tasks     []Task          `yaml:"tasks"`
	Files     []FileEntry     `yaml:"files"`
	Shortcuts []Shortcut      `yaml:"shortcuts"`
	Registry  []RegistryEntry `yaml:"registry"`
	Uninstall UninstallRules  `yaml:"uninstall"`
}

// AppMetadata identifies the product.
type AppMetadata struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Version    string `yaml:"version"`
	Publisher  string `yaml:"publisher"`
	URL        string `yaml:"url"`
	AUMID      string `yaml:"aumid"`
	ExeName    string `yaml:"exe_name"`
	DefaultDir string `yaml:"default_dir"`
	Icon       string `yaml:"icon"`
	OutputName string `yaml:"output_name"`
}

// Task is an optional, user-selectable install step.
type Task struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Unchecked   bool   `yaml:"unchecked"`
}

// FileEntry copies Source into DestDir.
type FileEntry struct {
	Source  string        `yaml:"source"`
	DestDir string        `yaml:"dest_dir"`
	Recurse bool          `yaml:"recurse"`
	Policy  VersionPolicy `yaml:"policy"`
}

// Shortcut is a Start menu or desktop link bound to the AUMID.
type Shortcut struct {
	Name   string `yaml:"name"`
	Target string `yaml:"target"`
	AUMID  string `yaml:"aumid"`
	Icon   string `yaml:"icon"`
	Task   string `yaml:"task"`
}

// RegistryEntry is a string value written at install time.
type RegistryEntry struct {
	Root      string        `yaml:"root"`
	Key       string        `yaml:"key"`
	ValueName string        `yaml:"value_name"`
	Value     string        `yaml:"value"`
	Task      string        `yaml:"task"`
	Removal   RemovalPolicy `yaml:"removal"`
	Purpose   Purpose       `yaml:"purpose"`
}

// UninstallRules run when the product is removed.
type UninstallRules struct {
	// TerminateProcesses are image names force-killed before files are removed.
	TerminateProcesses []string `yaml:"terminate_processes"`
	// DeleteDirs are removed recursively, e.g. the per-user data directory.
	DeleteDirs []string `yaml:"delete_dirs"`
}

// AUMIDKey returns the registry key of the AUMID registration.
func (d *Descriptor) AUMIDKey() string {
	return AUMIDKeyPrefix + d.App.AUMID
}

// MainExecutable is the installed path of the application executable.
func (d *Descriptor) MainExecutable() string {
	return `{app}\` + d.App.ExeName
}

// UserDataDir is the per-user application data directory.
func (d *Descriptor) UserDataDir() string {
	return `{userappdata}\` + d.App.Name
}

// Defaults describes the values a default descriptor is derived from.
type Defaults struct {
	AppID     string
	Name      string
	Version   string
	Publisher string
	URL       string
	AUMID     string
	ExeName   string
	SourceDir string
	Icon      string
}

// NewDefault builds the PasteMD descriptor: program files, Start menu and optional
// desktop shortcuts, opt-in autostart, AUMID registration and full cleanup on uninstall.
func NewDefault(in Defaults) *Descriptor {
	d := &Descriptor{
		App: AppMetadata{
			ID:         in.AppID,
			Name:       in.Name,
			Version:    in.Version,
			Publisher:  in.Publisher,
			URL:        in.URL,
			AUMID:      in.AUMID,
			ExeName:    in.ExeName,
			DefaultDir: `{autopf}\` + in.Name,
			Icon:       in.Icon,
			OutputName: in.Name + "-Setup-" + in.Version,
		},
		Tasks: []Task{
			{Name: "desktopicon", Description: "Create a desktop shortcut", Unchecked: true},
			{Name: "autostart", Description: "Start " + in.Name + " when I sign in"},
		},
	}

	d.Files = []FileEntry{
		{Source: filepath.Join(in.SourceDir, "*"), DestDir: "{app}", Recurse: true, Policy: PolicyIgnoreVersion},
	}

	var icon string
	if in.Icon != "" {
		icon = `{app}\` + filepath.Base(in.Icon)
		d.Files = append(d.Files, FileEntry{Source: in.Icon, DestDir: "{app}", Policy: PolicyIgnoreVersion})
	}

	d.Shortcuts = []Shortcut{
		{Name: `{autoprograms}\` + in.Name, Target: d.MainExecutable(), AUMID: in.AUMID, Icon: icon},
		{Name: `{autodesktop}\` + in.Name, Target: d.MainExecutable(), AUMID: in.AUMID, Icon: icon, Task: "desktopicon"},
	}

	d.Registry = []RegistryEntry{
		{
			Root: RootCurrentUser, Key: RunKey, ValueName: in.Name, Value: `"` + d.MainExecutable() + `"`,
			Task: "autostart", Removal: RemoveValue, Purpose: PurposeAutostart,
		},
		{
			Root: RootCurrentUser, Key: d.AUMIDKey(), ValueName: "DisplayName", Value: in.Name,
			Removal: RemoveKey, Purpose: PurposeAUMIDDisplayName,
		},
		{
			Root: RootCurrentUser, Key: d.AUMIDKey(), ValueName: "IconUri", Value: icon,
			Removal: RemoveKey, Purpose: PurposeAUMIDIcon,
		},
	}

	d.Uninstall = UninstallRules{
		TerminateProcesses: []string{in.ExeName},
		DeleteDirs:         []string{d.UserDataDir()},
	}

	return d
}

// Load reads a descriptor from YAML.
func Load(path string) (*Descriptor, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	var d Descriptor
	if err = yaml.Unmarshal(contents, &d); err != nil {
		return nil, fmt.Errorf("unmarshal descriptor: %w", err)
	}

	return &d, nil
}

// Validation errors. Validate aggregates every violation it finds.
var (
	ErrMissingMetadata    = errors.New("app metadata is incomplete")
	ErrAUMIDMismatch      = errors.New("AUMID reference differs from app AUMID")
	ErrAUMIDRegistration  = errors.New("AUMID registration is incomplete")
	ErrRemovalPolicy      = errors.New("registry entry would survive uninstall")
	ErrAutostart          = errors.New("autostart entry is invalid")
	ErrUnknownTask        = errors.New("entry references unknown task")
	ErrTerminationMissing = errors.New("main executable is not terminated before removal")
	ErrUserDataNotRemoved = errors.New("per-user data directory is not removed")
	ErrFilePolicy         = errors.New("file entry is invalid")
	ErrShortcutIcon       = errors.New("shortcut has no icon")
)

// Validate checks the descriptor invariants.
func (d *Descriptor) Validate() error {
	var err error

	required := []struct{ field, value string }{
		{"id", d.App.ID},
		{"name", d.App.Name},
		{"version", d.App.Version},
		{"publisher", d.App.Publisher},
		{"aumid", d.App.AUMID},
		{"exe_name", d.App.ExeName},
	}

	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			err = multierr.Append(err, fmt.Errorf("%w: %s", ErrMissingMetadata, r.field))
		}
	}

	tasks := make(map[string]struct{}, len(d.Tasks))
	for _, t := range d.Tasks {
		tasks[t.Name] = struct{}{}
	}

	checkTask := func(owner, task string) {
		if task == "" {
			return
		}

		if _, ok := tasks[task]; !ok {
			err = multierr.Append(err, fmt.Errorf("%w: %s uses %q", ErrUnknownTask, owner, task))
		}
	}

	for _, f := range d.Files {
		if f.Source == "" || f.DestDir == "" {
			err = multierr.Append(err, fmt.Errorf("%w: %+v", ErrFilePolicy, f))
		}

		switch f.Policy {
		case PolicyIgnoreVersion, PolicyReplaceSameVersion:
		default:
			err = multierr.Append(err, fmt.Errorf("%w: unknown policy %q for %s", ErrFilePolicy, f.Policy, f.Source))
		}
	}

	for _, s := range d.Shortcuts {
		if s.AUMID != d.App.AUMID {
			err = multierr.Append(err, fmt.Errorf("%w: %s has %q, app has %q", ErrAUMIDMismatch, s.Name, s.AUMID, d.App.AUMID))
		}

		if strings.TrimSpace(s.Icon) == "" {
			err = multierr.Append(err, fmt.Errorf("%w: %s", ErrShortcutIcon, s.Name))
		}

		checkTask(s.Name, s.Task)
	}

	err = multierr.Append(err, d.validateRegistry(checkTask))

	terminated := false

	for _, p := range d.Uninstall.TerminateProcesses {
		if strings.EqualFold(p, d.App.ExeName) {
			terminated = true
		}
	}

	if !terminated {
		err = multierr.Append(err, fmt.Errorf("%w: %s", ErrTerminationMissing, d.App.ExeName))
	}

	removed := false

	for _, dir := range d.Uninstall.DeleteDirs {
		if strings.EqualFold(dir, d.UserDataDir()) {
			removed = true
		}
	}

	if !removed {
		err = multierr.Append(err, fmt.Errorf("%w: %s", ErrUserDataNotRemoved, d.UserDataDir()))
	}

	return err
}

func (d *Descriptor) validateRegistry(checkTask func(owner, task string)) error {
	var (
		err              error
		hasName, hasIcon bool
		hasAutostart     bool
	)

	for _, r := range d.Registry {
		owner := r.Root + `\` + r.Key + `\` + r.ValueName
		checkTask(owner, r.Task)

		// Only these two policies are undone by uninstall.
		switch r.Removal {
		case RemoveValue, RemoveKey:
		default:
			err = multierr.Append(err, fmt.Errorf("%w: %s has policy %q", ErrRemovalPolicy, owner, r.Removal))
		}

		switch r.Purpose {
		case PurposeAutostart:
			hasAutostart = true

			if !strings.EqualFold(r.Key, RunKey) || r.Root != RootCurrentUser || r.Value == "" {
				err = multierr.Append(err, fmt.Errorf("%w: %s must be a current-user Run value", ErrAutostart, owner))
			}

			if r.Task == "" {
				err = multierr.Append(err, fmt.Errorf("%w: %s must be opt-in", ErrAutostart, owner))
			}

			if r.Removal == RemoveKey {
				err = multierr.Append(err, fmt.Errorf("%w: %s must delete only its value", ErrAutostart, owner))
			}
		case PurposeAUMIDDisplayName, PurposeAUMIDIcon:
			if !strings.EqualFold(r.Key, d.AUMIDKey()) {
				err = multierr.Append(err, fmt.Errorf("%w: %s is outside %s", ErrAUMIDMismatch, owner, d.AUMIDKey()))

				continue
			}

			if r.Removal != RemoveKey {
				err = multierr.Append(err, fmt.Errorf("%w: %s must remove the whole key", ErrRemovalPolicy, owner))
			}

			if r.Purpose == PurposeAUMIDDisplayName && r.ValueName == "DisplayName" && r.Value != "" {
				hasName = true
			}

			if r.Purpose == PurposeAUMIDIcon && r.ValueName == "IconUri" && r.Value != "" {
				hasIcon = true
			}
		}
	}

	if !hasName || !hasIcon {
		err = multierr.Append(err, fmt.Errorf("%w: DisplayName and IconUri are required under %s", ErrAUMIDRegistration, d.AUMIDKey()))
	}

	if !hasAutostart {
		err = multierr.Append(err, fmt.Errorf("%w: missing", ErrAutostart))
	}

	return err
}
