package manifest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"howett.net/plist"
)

const infoPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>CFBundleExecutable</key>
	<string>PasteMD</string>
	<key>CFBundleIdentifier</key>
	<string>com.old.id</string>
	<key>LSUIElement</key>
	<true/>
	<key>LSMinimumSystemVersion</key>
	<string>11.0</string>
</dict>
</plist>
`

func writeBundle(t *testing.T) string {
	t.Helper()

	bundle := filepath.Join(t.TempDir(), "main.app")
	require.NoError(t, os.MkdirAll(filepath.Join(bundle, "Contents"), 0o755))
	require.NoError(t, os.WriteFile(InfoPlistPath(bundle), []byte(infoPlist), 0o644))

	return bundle
}

// TestOpen_NotFound verifies Open returns ErrNotFound for a missing file.
func TestOpen_NotFound(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "Info.plist"))
	require.ErrorIs(t, err, ErrNotFound)
}

// TestOpen_Malformed rejects content that is not a dictionary plist.
func TestOpen_Malformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "Info.plist")
	require.NoError(t, os.WriteFile(path, []byte("<plist><array><string>x</string></array></plist>"), 0o644))

	_, err := Open(path)
	require.ErrorIs(t, err, ErrMalformed)
}

// TestFile_SetCommit updates existing keys, inserts new ones and keeps other values intact.
func TestFile_SetCommit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	bundle := writeBundle(t)

	f, err := Open(InfoPlistPath(bundle))
	require.NoError(t, err)

	v, ok, err := f.Get(ctx, "CFBundleIdentifier")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "com.old.id", v)

	_, ok, err = f.Get(ctx, "NSAppleEventsUsageDescription")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, f.Set(ctx, "CFBundleIdentifier", "com.richqaq.pastemd"))
	require.NoError(t, f.Set(ctx, "NSAppleEventsUsageDescription", "text"))
	require.NoError(t, f.Commit(ctx))

	data, err := os.ReadFile(InfoPlistPath(bundle))
	require.NoError(t, err)

	var decoded map[string]any

	_, err = plist.Unmarshal(data, &decoded)
	require.NoError(t, err)
	require.Equal(t, "com.richqaq.pastemd", decoded["CFBundleIdentifier"])
	require.Equal(t, "text", decoded["NSAppleEventsUsageDescription"])
	require.Equal(t, true, decoded["LSUIElement"])
	require.Equal(t, "PasteMD", decoded["CFBundleExecutable"])
}

// TestFile_Deterministic shows that encoding the same values twice yields identical bytes.
func TestFile_Deterministic(t *testing.T) {
	t.Parallel()

	bundle := writeBundle(t)

	f, err := Open(InfoPlistPath(bundle))
	require.NoError(t, err)

	first, err := f.Bytes()
	require.NoError(t, err)

	require.NoError(t, f.Commit(context.Background()))

	reopened, err := Open(InfoPlistPath(bundle))
	require.NoError(t, err)

	second, err := reopened.Bytes()
	require.NoError(t, err)
	require.Equal(t, first, second)
}

// TestFile_CommitSortsKeys pins the canonical key order written back to disk.
func TestFile_CommitSortsKeys(t *testing.T) {
	t.Parallel()

	bundle := writeBundle(t)

	f, err := Open(InfoPlistPath(bundle))
	require.NoError(t, err)
	require.NoError(t, f.Commit(context.Background()))

	data, err := os.ReadFile(InfoPlistPath(bundle))
	require.NoError(t, err)

	text := string(data)
	keys := []string{"CFBundleExecutable", "CFBundleIdentifier", "LSMinimumSystemVersion", "LSUIElement"}

	for i := 1; i < len(keys); i++ {
		require.Less(t, strings.Index(text, "<key>"+keys[i-1]+"</key>"), strings.Index(text, "<key>"+keys[i]+"</key>"))
	}
}
