package version

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap/zapcore"
)

// Package is the name reported in build information.
const Package = "vdo-manager"

const unknown = "unknown"

var (
	// Set with -ldflags "-X"; otherwise read from the module build info.
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

// Info describes the running build. It is logged as one structured field
// with every invocation.
type Info struct {
	Version string
	Commit  string
	Date    string
	Package string
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (i Info) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("version", i.Version)
	enc.AddString("commit", i.Commit)
	enc.AddString("date", i.Date)
	enc.AddString("package", i.Package)
	return nil
}

// String is the one-line form shown by --version.
func (i Info) String() string {
	if i.Commit == unknown || len(i.Commit) <= 7 {
		return i.Version
	}
	if i.Date == unknown {
		return fmt.Sprintf("%s (%s)", i.Version, i.Commit[:7])
	}
	return fmt.Sprintf("%s (%s, built %s)", i.Version, i.Commit[:7], i.Date)
}

// buildSetting looks key up in the module build info.
func buildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

// GetVersion returns the linked-in version, else the module version.
func GetVersion() string {
	if Version != "dev" && Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "development"
}

// GetCommit returns the linked-in commit, else the VCS revision.
func GetCommit() string {
	return orBuildSetting(Commit, "vcs.revision")
}

// GetBuildDate returns the linked-in date, else the VCS commit time.
func GetBuildDate() string {
	return orBuildSetting(Date, "vcs.time")
}

func orBuildSetting(linked, key string) string {
	if linked != unknown && linked != "" {
		return linked
	}
	if v := buildSetting(key); v != "" {
		return v
	}
	return unknown
}

// GetInfo returns the build information.
func GetInfo() Info {
	return Info{
		Version: GetVersion(),
		Commit:  GetCommit(),
		Date:    GetBuildDate(),
		Package: Package,
	}
}

// GetFullVersion returns the version with short commit and date when known.
func GetFullVersion() string {
	return GetInfo().String()
}
