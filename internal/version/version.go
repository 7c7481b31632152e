// Package version reports which delimreport build is running.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via ldflags, e.g.
// go build -ldflags="-X github.com/andywolf/delimreport/internal/version.Version=v1.0.0"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Build describes the running binary.
type Build struct {
	Version   string
	Commit    string
	BuildDate string
	Modified  bool
}

// Current returns the ldflags values, filling unset ones from the VCS stamp
// the go tool embeds in module-aware builds (`go install ...@version`).
func Current() Build {
	b := Build{Version: Version, Commit: Commit, BuildDate: BuildDate}

	info, ok := readBuildInfo()
	if !ok {
		return b
	}
	if b.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "unknown" {
				b.Commit = s.Value
			}
		case "vcs.time":
			if b.BuildDate == "unknown" {
				b.BuildDate = s.Value
			}
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	return b
}

// ShortCommit returns the first seven characters of the commit.
func (b Build) ShortCommit() string {
	if len(b.Commit) > 7 {
		return b.Commit[:7]
	}
	return b.Commit
}

// Short returns the version string (e.g., "v1.2.3" or "dev").
func Short() string {
	return Current().Version
}

// UserAgent identifies delimreport to the GitHub API.
func UserAgent() string {
	return "delimreport/" + Short()
}

// Info returns a single-line version string, e.g.
// "delimreport v1.2.3 (commit: abc1234, built: 2024-01-15T10:30:00Z, go: go1.23.4)"
func Info() string {
	b := Current()
	commit := b.ShortCommit()
	if b.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("delimreport %s (commit: %s, built: %s, go: %s)",
		b.Version, commit, b.BuildDate, runtime.Version())
}

// Full returns a multi-line verbose version output.
func Full() string {
	b := Current()
	return fmt.Sprintf(`delimreport %s
  Commit:     %s
  Modified:   %t
  Built:      %s
  Go version: %s
  OS/Arch:    %s/%s`,
		b.Version, b.Commit, b.Modified, b.BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
