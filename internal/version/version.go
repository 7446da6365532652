// Package version reports build metadata for the version command, the
// health endpoint and the fetch User-Agent.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string    `json:"version" yaml:"version"`
	GitCommit string    `json:"git_commit" yaml:"git_commit"`
	BuildTime time.Time `json:"build_time" yaml:"build_time"`
	GoVersion string    `json:"go_version" yaml:"go_version"`
	Platform  string    `json:"platform" yaml:"platform"`
	Dirty     bool      `json:"dirty,omitempty" yaml:"dirty,omitempty"`
}

// Set at build time with -ldflags "-X".
var (
	Version   = "dev"
	GitCommit = "unknown"
	// BuildTime is RFC3339.
	BuildTime = "unknown"
)

const product = "safepreview"

// GetBuildInfo returns comprehensive build information
func GetBuildInfo() *BuildInfo {
	return &BuildInfo{
		Version:   GetVersion(),
		GitCommit: GetGitCommit(),
		BuildTime: parseISOTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		Dirty:     IsDirty(),
	}
}

// GetVersion returns the application version
func GetVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			return info.Main.Version
		}

		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
				return fmt.Sprintf("dev-%s", setting.Value[:7])
			}
		}
	}

	return "dev"
}

// GetGitCommit returns the git commit hash
func GetGitCommit() string {
	if GitCommit != "" && GitCommit != "unknown" {
		return GitCommit
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return setting.Value
			}
		}
	}

	return "unknown"
}

// GetShortVersion returns a short version string suitable for display
func GetShortVersion() string {
	version := GetVersion()
	commit := GetGitCommit()

	if commit != "unknown" && len(commit) >= 7 {
		shortCommit := commit[:7]
		if version != "dev" && !strings.HasPrefix(version, "dev-") {
			return fmt.Sprintf("%s (%s)", version, shortCommit)
		}

		return fmt.Sprintf("dev-%s", shortCommit)
	}

	return version
}

// GetDetailedVersion returns a detailed version string with all build info
func GetDetailedVersion() string {
	info := GetBuildInfo()

	parts := []string{fmt.Sprintf("Version: %s", info.Version)}
	if info.GitCommit != "unknown" {
		parts = append(parts, fmt.Sprintf("Commit: %s", info.GitCommit))
	}
	if !info.BuildTime.IsZero() {
		parts = append(parts, fmt.Sprintf("Built: %s", info.BuildTime.Format(time.RFC3339)))
	}
	parts = append(parts,
		fmt.Sprintf("Go: %s", info.GoVersion),
		fmt.Sprintf("Platform: %s", info.Platform),
	)

	return strings.Join(parts, "\n")
}

// UserAgent returns the User-Agent sent when fetching remote fragments.
func UserAgent() string {
	return product + "/" + GetVersion()
}

// IsRelease returns true if this is a release build (not dev)
func IsRelease() bool {
	version := GetVersion()

	return version != "dev" && !strings.HasPrefix(version, "dev-")
}

// IsDirty returns true if the working directory was dirty when built
func IsDirty() bool {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.modified" {
				return setting.Value == "true"
			}
		}
	}

	return false
}

// parseISOTime parses an ISO 8601 time string, returns zero time on error
func parseISOTime(timeStr string) time.Time {
	if timeStr == "" || timeStr == "unknown" {
		return time.Time{}
	}

	for _, format := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(format, timeStr); err == nil {
			return t
		}
	}

	return time.Time{}
}
