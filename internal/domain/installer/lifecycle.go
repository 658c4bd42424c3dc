package installer

import (
	"context"
	"errors"
	"fmt"
)

// State of an installation on a target machine.
type State string

const (
	StateFresh               State = "fresh"
	StateInstalled           State = "installed"
	StateUninstallRequested  State = "uninstall-requested"
	StateProcessTerminated   State = "process-terminated"
	StateFilesRemoved        State = "files-removed"
	StateRegistryKeysRemoved State = "registry-keys-removed"
	StateUninstalled         State = "uninstalled"
)

// ErrInvalidTransition is returned when an operation is not allowed in the current state.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// Machine is the target host the setup executable acts on.
type Machine interface {
	TerminateProcess(ctx context.Context, image string) error
	CopyFiles(ctx context.Context, entry FileEntry) error
	RemoveFiles(ctx context.Context, entry FileEntry) error
	CreateShortcut(ctx context.Context, s Shortcut) error
	RemoveShortcut(ctx context.Context, s Shortcut) error
	SetRegistryValue(ctx context.Context, e RegistryEntry) error
	DeleteRegistryValue(ctx context.Context, root, key, name string) error
	DeleteRegistryKey(ctx context.Context, root, key string) error
	RemoveDir(ctx context.Context, dir string) error
}

// Lifecycle drives install, upgrade and uninstall of a descriptor against a Machine.
// It is not safe for concurrent use.
type Lifecycle struct {
	descriptor *Descriptor
	machine    Machine
	state      State
	tasks      map[string]bool
	history    []State
}

// NewLifecycle starts in StateFresh.
func NewLifecycle(d *Descriptor, m Machine) *Lifecycle {
	return &Lifecycle{
		descriptor: d,
		machine:    m,
		state:      StateFresh,
		tasks:      map[string]bool{},
		history:    []State{StateFresh},
	}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	return l.state
}

// History returns every state visited, in order.
func (l *Lifecycle) History() []State {
	return append([]State(nil), l.history...)
}

// Install performs a fresh install or, when already installed, an upgrade.
// Selected tasks are remembered; an upgrade without tasks reuses the previous selection.
func (l *Lifecycle) Install(ctx context.Context, tasks ...string) error {
	switch l.state {
	case StateFresh, StateUninstalled, StateInstalled:
	default:
		return fmt.Errorf("%w: install from %s", ErrInvalidTransition, l.state)
	}

	if len(tasks) > 0 || l.state != StateInstalled {
		l.tasks = make(map[string]bool, len(tasks))
		for _, t := range tasks {
			l.tasks[t] = true
		}
	}

	// A running instance holds its files open; setup closes it before overwriting.
	if l.state == StateInstalled {
		if err := l.terminate(ctx); err != nil {
			return err
		}
	}

	for _, f := range l.descriptor.Files {
		if err := l.machine.CopyFiles(ctx, f); err != nil {
			return fmt.Errorf("copy %s: %w", f.Source, err)
		}
	}

	for _, s := range l.descriptor.Shortcuts {
		if !l.selected(s.Task) {
			continue
		}

		if err := l.machine.CreateShortcut(ctx, s); err != nil {
			return fmt.Errorf("create shortcut %s: %w", s.Name, err)
		}
	}

	for _, r := range l.descriptor.Registry {
		if !l.selected(r.Task) {
			continue
		}

		if err := l.machine.SetRegistryValue(ctx, r); err != nil {
			return fmt.Errorf("set %s\\%s: %w", r.Key, r.ValueName, err)
		}
	}

	l.enter(StateInstalled)

	return nil
}

// Uninstall walks the removal sequence. On failure the lifecycle stays in the
// last state it reached.
func (l *Lifecycle) Uninstall(ctx context.Context) error {
	if l.state != StateInstalled {
		return fmt.Errorf("%w: uninstall from %s", ErrInvalidTransition, l.state)
	}

	l.enter(StateUninstallRequested)

	if err := l.terminate(ctx); err != nil {
		return err
	}

	l.enter(StateProcessTerminated)

	for _, s := range l.descriptor.Shortcuts {
		if err := l.machine.RemoveShortcut(ctx, s); err != nil {
			return fmt.Errorf("remove shortcut %s: %w", s.Name, err)
		}
	}

	for _, f := range l.descriptor.Files {
		if err := l.machine.RemoveFiles(ctx, f); err != nil {
			return fmt.Errorf("remove %s: %w", f.Source, err)
		}
	}

	for _, dir := range l.descriptor.Uninstall.DeleteDirs {
		if err := l.machine.RemoveDir(ctx, dir); err != nil {
			return fmt.Errorf("remove dir %s: %w", dir, err)
		}
	}

	l.enter(StateFilesRemoved)

	for _, r := range l.descriptor.Registry {
		var err error

		switch r.Removal {
		case RemoveValue:
			err = l.machine.DeleteRegistryValue(ctx, r.Root, r.Key, r.ValueName)
		case RemoveKey:
			err = l.machine.DeleteRegistryKey(ctx, r.Root, r.Key)
		default:
			continue
		}

		if err != nil {
			return fmt.Errorf("delete %s\\%s: %w", r.Root, r.Key, err)
		}
	}

	l.enter(StateRegistryKeysRemoved)
	l.tasks = map[string]bool{}
	l.enter(StateUninstalled)

	return nil
}

func (l *Lifecycle) terminate(ctx context.Context) error {
	for _, image := range l.descriptor.Uninstall.TerminateProcesses {
		if err := l.machine.TerminateProcess(ctx, image); err != nil {
			return fmt.Errorf("terminate %s: %w", image, err)
		}
	}

	return nil
}

func (l *Lifecycle) selected(task string) bool {
	return task == "" || l.tasks[task]
}

func (l *Lifecycle) enter(s State) {
	l.state = s
	l.history = append(l.history, s)
}
