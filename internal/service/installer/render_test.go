package installer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/richqaq/pastemd-packager/internal/domain/installer"
)

func testDescriptor() *domain.Descriptor {
	return domain.NewDefault(domain.Defaults{
		AppID:     "{{5C1F3B9E-7A2D-4E8B-9C6F-2D4A8E1B7F30}",
		Name:      "PasteMD",
		Version:   "0.1.6",
		Publisher: "RICHQAQ",
		URL:       "https://github.com/RICHQAQ/PasteMD",
		AUMID:     "RICHQAQ.PasteMD",
		ExeName:   "PasteMD.exe",
		SourceDir: "dist/PasteMD.dist",
		Icon:      "assets/icons/logo.ico",
	})
}

func TestRender_Sections(t *testing.T) {
	t.Parallel()

	script := Render(testDescriptor())

	var sections []string

	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(line, "[") {
			sections = append(sections, line)
		}
	}

	require.Equal(t, []string{
		"[Setup]", "[Tasks]", "[Files]", "[Icons]", "[Registry]", "[UninstallRun]", "[UninstallDelete]", "[Run]",
	}, sections)
}

func TestRender_Entries(t *testing.T) {
	t.Parallel()

	script := Render(testDescriptor())

	for _, want := range []string{
		"AppId={{5C1F3B9E-7A2D-4E8B-9C6F-2D4A8E1B7F30}\n",
		"OutputBaseFilename=PasteMD-Setup-0.1.6\n",
		"CloseApplications=force\n",
		`SetupIconFile=assets\icons\logo.ico` + "\n",
		`Name: "desktopicon"; Description: "Create a desktop shortcut"; Flags: unchecked` + "\n",
		`Source: "dist\PasteMD.dist\*"; DestDir: "{app}"; Flags: ignoreversion recursesubdirs createallsubdirs` + "\n",
		`Name: "{autodesktop}\PasteMD"; Filename: "{app}\PasteMD.exe"; IconFilename: "{app}\logo.ico"; ` +
			`AppUserModelID: "RICHQAQ.PasteMD"; Tasks: desktopicon` + "\n",
		`Root: HKCU; Subkey: "Software\Microsoft\Windows\CurrentVersion\Run"; ValueType: string; ValueName: "PasteMD"; ` +
			`ValueData: """{app}\PasteMD.exe"""; Flags: uninsdeletevalue; Tasks: autostart` + "\n",
		`Root: HKCU; Subkey: "Software\Classes\AppUserModelId\RICHQAQ.PasteMD"; ValueType: string; ` +
			`ValueName: "DisplayName"; ValueData: "PasteMD"; Flags: uninsdeletekey` + "\n",
		`Filename: "{sys}\taskkill.exe"; Parameters: "/F /IM PasteMD.exe"; Flags: runhidden; RunOnceId: "TerminatePasteMD"` + "\n",
		`Type: filesandordirs; Name: "{userappdata}\PasteMD"` + "\n",
		`Filename: "{app}\PasteMD.exe"; Description: "Launch PasteMD"; Flags: nowait postinstall skipifsilent` + "\n",
	} {
		require.Contains(t, script, want)
	}
}

func TestRender_Deterministic(t *testing.T) {
	t.Parallel()

	require.Equal(t, Render(testDescriptor()), Render(testDescriptor()))
}

func TestQuote(t *testing.T) {
	t.Parallel()

	require.Equal(t, `"plain"`, quote("plain"))
	require.Equal(t, `"say ""hi"""`, quote(`say "hi"`))
}
