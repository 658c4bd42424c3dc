package integration

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

const signIdentity = "Developer ID Application: RICHQAQ (ABCDE12345)"

// fakeTools are shell scripts standing in for python/nuitka, codesign,
// security, open and iscc. Each appends its arguments to <name>.log.
var fakeTools = map[string]string{
	"python3": `#!/bin/sh
echo "$@" >> "$(dirname "$0")/python3.log"
if [ "$1" = "-I" ]; then
	echo "0.1.6"
	exit 0
fi
out=""
for a in "$@"; do
	case "$a" in
	--help)
		echo "  --macos-app-version=MACOS_APP_VERSION"
		echo "  --macos-signed-app-name=MACOS_SIGNED_APP_NAME"
		echo "  --macos-sign-identity=MACOS_SIGN_IDENTITY"
		exit 0
		;;
	--output-dir=*)
		out="${a#--output-dir=}"
		;;
	esac
done
mkdir -p "$out/main.app/Contents/MacOS"
printf '#!/bin/sh\n' > "$out/main.app/Contents/MacOS/main"
chmod 755 "$out/main.app/Contents/MacOS/main"
cat > "$out/main.app/Contents/Info.plist" <<'PLIST'
<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>CFBundleExecutable</key>
	<string>main</string>
	<key>CFBundleIdentifier</key>
	<string>com.old.id</string>
</dict>
</plist>
PLIST
`,
	"codesign": `#!/bin/sh
echo "$@" >> "$(dirname "$0")/codesign.log"
if [ "$1" = "-dv" ]; then
	echo "Identifier=com.richqaq.pastemd" >&2
	echo "Authority=Developer ID Application: RICHQAQ (ABCDE12345)" >&2
	echo "Authority=Apple Root CA" >&2
	echo "TeamIdentifier=ABCDE12345" >&2
fi
`,
	"security": `#!/bin/sh
echo "  1) 0123456789ABCDEF \"Developer ID Application: RICHQAQ (ABCDE12345)\""
echo "     1 valid identities found"
`,
	"open": `#!/bin/sh
echo "$@" >> "$(dirname "$0")/open.log"
`,
	"iscc": `#!/bin/sh
echo "$@" >> "$(dirname "$0")/iscc.log"
out="${1#/O}"
grep -q 'AppUserModelID: "RICHQAQ.PasteMD"' "$2" || exit 2
: > "$out/PasteMD-Setup-0.1.6.exe"
`,
}

// installFakeTools writes the scripts into a temporary directory and returns it.
// Tests using it do not run in parallel: a fork from another test can inherit
// the write descriptor of a fresh script and make exec fail with ETXTBSY.
func installFakeTools(t *testing.T) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake toolchain needs a POSIX shell")
	}

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found")
	}

	dir := t.TempDir()

	for name, body := range fakeTools {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o755))
	}

	return dir
}

func readLog(t *testing.T, dir, tool string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, tool+".log"))
	require.NoError(t, err)

	return string(data)
}

type noopTerminator struct{}

func (noopTerminator) TerminateByName(context.Context, string) (int, error) {
	return 0, nil
}
