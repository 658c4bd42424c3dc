package installer

import (
	"fmt"
	"strings"

	domain "github.com/richqaq/pastemd-packager/internal/domain/installer"
)

// Render produces the Inno Setup script for d. Output depends only on d.
func Render(d *domain.Descriptor) string {
	var b strings.Builder

	section(&b, "Setup")
	directive(&b, "AppId", d.App.ID)
	directive(&b, "AppName", d.App.Name)
	directive(&b, "AppVersion", d.App.Version)
	directive(&b, "AppVerName", d.App.Name+" "+d.App.Version)
	directive(&b, "AppPublisher", d.App.Publisher)

	if d.App.URL != "" {
		directive(&b, "AppPublisherURL", d.App.URL)
		directive(&b, "AppSupportURL", d.App.URL)
	}

	directive(&b, "DefaultDirName", d.App.DefaultDir)
	directive(&b, "DisableProgramGroupPage", "yes")
	directive(&b, "OutputBaseFilename", d.App.OutputName)

	if d.App.Icon != "" {
		directive(&b, "SetupIconFile", winPath(d.App.Icon))
	}

	directive(&b, "UninstallDisplayIcon", d.MainExecutable())
	directive(&b, "PrivilegesRequired", "lowest")
	directive(&b, "Compression", "lzma2")
	directive(&b, "SolidCompression", "yes")
	directive(&b, "WizardStyle", "modern")
	directive(&b, "CloseApplications", "force")
	directive(&b, "RestartApplications", "no")

	if len(d.Tasks) > 0 {
		section(&b, "Tasks")

		for _, t := range d.Tasks {
			e := entry{}
			e.quoted("Name", t.Name)
			e.quoted("Description", t.Description)

			if t.Unchecked {
				e.plain("Flags", "unchecked")
			}

			e.writeTo(&b)
		}
	}

	section(&b, "Files")

	for _, f := range d.Files {
		e := entry{}
		e.quoted("Source", winPath(f.Source))
		e.quoted("DestDir", f.DestDir)

		flags := []string{string(f.Policy)}
		if f.Recurse {
			flags = append(flags, "recursesubdirs", "createallsubdirs")
		}

		e.plain("Flags", strings.Join(flags, " "))
		e.writeTo(&b)
	}

	section(&b, "Icons")

	for _, s := range d.Shortcuts {
		e := entry{}
		e.quoted("Name", s.Name)
		e.quoted("Filename", s.Target)

		if s.Icon != "" {
			e.quoted("IconFilename", s.Icon)
		}

		e.quoted("AppUserModelID", s.AUMID)
		e.task(s.Task)
		e.writeTo(&b)
	}

	section(&b, "Registry")

	for _, r := range d.Registry {
		e := entry{}
		e.plain("Root", r.Root)
		e.quoted("Subkey", r.Key)
		e.plain("ValueType", "string")
		e.quoted("ValueName", r.ValueName)
		e.quoted("ValueData", r.Value)

		if r.Removal != domain.RemoveKeep && r.Removal != "" {
			e.plain("Flags", string(r.Removal))
		}

		e.task(r.Task)
		e.writeTo(&b)
	}

	if len(d.Uninstall.TerminateProcesses) > 0 {
		section(&b, "UninstallRun")

		for _, image := range d.Uninstall.TerminateProcesses {
			e := entry{}
			e.quoted("Filename", `{sys}\taskkill.exe`)
			e.quoted("Parameters", "/F /IM "+image)
			e.plain("Flags", "runhidden")
			e.quoted("RunOnceId", "Terminate"+strings.TrimSuffix(image, ".exe"))
			e.writeTo(&b)
		}
	}

	if len(d.Uninstall.DeleteDirs) > 0 {
		section(&b, "UninstallDelete")

		for _, dir := range d.Uninstall.DeleteDirs {
			e := entry{}
			e.plain("Type", "filesandordirs")
			e.quoted("Name", dir)
			e.writeTo(&b)
		}
	}

	section(&b, "Run")

	e := entry{}
	e.quoted("Filename", d.MainExecutable())
	e.quoted("Description", "Launch "+d.App.Name)
	e.plain("Flags", "nowait postinstall skipifsilent")
	e.writeTo(&b)

	return b.String()
}

// entry is one "Key: value; Key: value" line.
type entry struct {
	params []string
}

func (e *entry) quoted(key, value string) {
	e.params = append(e.params, key+": "+quote(value))
}

func (e *entry) plain(key, value string) {
	e.params = append(e.params, key+": "+value)
}

func (e *entry) task(name string) {
	if name != "" {
		e.plain("Tasks", name)
	}
}

func (e *entry) writeTo(b *strings.Builder) {
	b.WriteString(strings.Join(e.params, "; "))
	b.WriteByte('\n')
}

func section(b *strings.Builder, name string) {
	if b.Len() > 0 {
		b.WriteByte('\n')
	}

	fmt.Fprintf(b, "[%s]\n", name)
}

func directive(b *strings.Builder, key, value string) {
	fmt.Fprintf(b, "%s=%s\n", key, value)
}

// quote wraps a parameter value in double quotes, doubling embedded quotes.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// winPath switches a host path to backslash separators.
func winPath(p string) string {
	return strings.ReplaceAll(p, "/", `\`)
}
