package installer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrFileLocked is returned when files of a running image are removed or overwritten.
var ErrFileLocked = errors.New("file is locked by a running process")

// MemoryMachine is an in-memory Machine. Registry keys and paths compare
// case-insensitively, as on Windows.
type MemoryMachine struct {
	mu        sync.Mutex
	files     map[string]FileEntry
	shortcuts map[string]Shortcut
	registry  map[string]map[string]string
	dirs      map[string]struct{}
	running   map[string]struct{}
}

// NewMemoryMachine returns an empty machine.
func NewMemoryMachine() *MemoryMachine {
	return &MemoryMachine{
		files:     map[string]FileEntry{},
		shortcuts: map[string]Shortcut{},
		registry:  map[string]map[string]string{},
		dirs:      map[string]struct{}{},
		running:   map[string]struct{}{},
	}
}

// StartProcess marks an image as running.
func (m *MemoryMachine) StartProcess(image string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.running[fold(image)] = struct{}{}
}

// CreateDir creates a directory the application would write at runtime.
func (m *MemoryMachine) CreateDir(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dirs[fold(dir)] = struct{}{}
}

// Running reports whether an image is running.
func (m *MemoryMachine) Running(image string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.running[fold(image)]

	return ok
}

// RegistryValue returns a stored value.
func (m *MemoryMachine) RegistryValue(root, key, name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.registry[regKey(root, key)][fold(name)]

	return v, ok
}

// HasShortcut reports whether a shortcut exists.
func (m *MemoryMachine) HasShortcut(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.shortcuts[fold(name)]

	return ok
}

func (m *MemoryMachine) TerminateProcess(_ context.Context, image string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.running, fold(image))

	return nil
}

func (m *MemoryMachine) CopyFiles(_ context.Context, entry FileEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkUnlocked(entry); err != nil {
		return err
	}

	m.files[fileKey(entry)] = entry

	return nil
}

func (m *MemoryMachine) RemoveFiles(_ context.Context, entry FileEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkUnlocked(entry); err != nil {
		return err
	}

	delete(m.files, fileKey(entry))

	return nil
}

func (m *MemoryMachine) CreateShortcut(_ context.Context, s Shortcut) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shortcuts[fold(s.Name)] = s

	return nil
}

func (m *MemoryMachine) RemoveShortcut(_ context.Context, s Shortcut) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.shortcuts, fold(s.Name))

	return nil
}

func (m *MemoryMachine) SetRegistryValue(_ context.Context, e RegistryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := regKey(e.Root, e.Key)
	if m.registry[k] == nil {
		m.registry[k] = map[string]string{}
	}

	m.registry[k][fold(e.ValueName)] = e.Value

	return nil
}

func (m *MemoryMachine) DeleteRegistryValue(_ context.Context, root, key, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := regKey(root, key)
	delete(m.registry[k], fold(name))

	if len(m.registry[k]) == 0 {
		delete(m.registry, k)
	}

	return nil
}

// DeleteRegistryKey removes the key and every subkey below it.
func (m *MemoryMachine) DeleteRegistryKey(_ context.Context, root, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := regKey(root, key)
	for existing := range m.registry {
		if existing == k || strings.HasPrefix(existing, k+`\`) {
			delete(m.registry, existing)
		}
	}

	return nil
}

func (m *MemoryMachine) RemoveDir(_ context.Context, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := fold(dir)
	for existing := range m.dirs {
		if existing == d || strings.HasPrefix(existing, d+`\`) {
			delete(m.dirs, existing)
		}
	}

	return nil
}

// Residue lists everything left on the machine, sorted.
func (m *MemoryMachine) Residue() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string

	for k := range m.files {
		out = append(out, "file "+k)
	}

	for k := range m.shortcuts {
		out = append(out, "shortcut "+k)
	}

	for k, values := range m.registry {
		for name := range values {
			out = append(out, fmt.Sprintf("registry %s [%s]", k, name))
		}
	}

	for k := range m.dirs {
		out = append(out, "dir "+k)
	}

	for k := range m.running {
		out = append(out, "process "+k)
	}

	sort.Strings(out)

	return out
}

// checkUnlocked fails while any process is running out of {app}. The caller holds mu.
func (m *MemoryMachine) checkUnlocked(entry FileEntry) error {
	if fold(entry.DestDir) != "{app}" || len(m.running) == 0 {
		return nil
	}

	images := make([]string, 0, len(m.running))
	for image := range m.running {
		images = append(images, image)
	}

	sort.Strings(images)

	return fmt.Errorf("%w: %s", ErrFileLocked, strings.Join(images, ", "))
}

func fileKey(e FileEntry) string {
	return fold(e.DestDir) + `\` + fold(e.Source)
}

func regKey(root, key string) string {
	return fold(root) + `\` + fold(key)
}

func fold(s string) string {
	return strings.ToLower(s)
}
