// Package version reports the mailsearch build.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/Aman-CERP/mailsearch/pkg/version.Version=...".
// Commit and Date fall back to the VCS stamp Go embeds in the binary.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"

	GoVersion = runtime.Version()
)

// BuildInfo is the JSON form of `mailsearch version --json`.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	Dirty     bool   `json:"dirty,omitempty"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetInfo returns the build information, reading vcs.* settings from the
// embedded build info when ldflags left Commit or Date unset.
func GetInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" && len(s.Value) >= 12 {
				info.Commit = s.Value[:12]
			}
		case "vcs.time":
			if info.Date == "unknown" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	return info
}

// String is the one-line form printed by `mailsearch version`.
func String() string {
	info := GetInfo()
	commit := info.Commit
	if info.Dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("mailsearch %s (commit: %s, built: %s, go: %s, %s/%s)",
		info.Version, commit, info.Date, info.GoVersion, info.OS, info.Arch)
}

// Short returns the bare version.
func Short() string {
	return Version
}
