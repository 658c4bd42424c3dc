package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"howett.net/plist"
)

// InfoPlistPath returns the manifest location inside a macOS .app bundle.
func InfoPlistPath(bundlePath string) string {
	return filepath.Join(bundlePath, "Contents", "Info.plist")
}

var (
	// ErrNotFound is returned when the manifest file does not exist.
	ErrNotFound = errors.New("manifest not found")
	// ErrMalformed is returned when the file is not a property list dictionary.
	ErrMalformed = errors.New("manifest is malformed")
)

// File is an Info.plist loaded into memory.
type File struct {
	// path is the filesystem location of the plist.
	path string
	// mode is preserved when the file is written back.
	mode os.FileMode
	// values holds the top-level dictionary.
	values map[string]any
	// mu protects values.
	mu sync.Mutex
}

// Open reads and decodes the plist at path. XML, binary and OpenStep formats are accepted.
func Open(path string) (*File, error) {
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}

		return nil, fmt.Errorf("stat manifest: %w", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	values := make(map[string]any)
	if _, err = plist.Unmarshal(contents, &values); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return &File{
		path:   path,
		mode:   info.Mode().Perm(),
		values: values,
	}, nil
}

// Path returns the location of the plist.
func (f *File) Path() string {
	return f.path
}

// Get returns the value stored under key. Non-string values are rendered with fmt.
func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.values[key]
	if !ok {
		return "", false, nil
	}

	if s, isString := v.(string); isString {
		return s, true, nil
	}

	return fmt.Sprint(v), true, nil
}

// Set updates key in place or inserts it.
func (f *File) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.values[key] = value

	return nil
}

// Commit writes the plist back to disk.
func (f *File) Commit(_ context.Context) error {
	data, err := f.Bytes()
	if err != nil {
		return err
	}

	if err = os.WriteFile(f.path, data, f.mode); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// Bytes encodes the current values as an XML plist.
func (f *File) Bytes() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := plist.MarshalIndent(f.values, plist.XMLFormat, "\t")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	return data, nil
}
