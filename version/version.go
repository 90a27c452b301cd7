// Package version reports how the cystub binary was built.
//
// Release builds stamp Version, Commit and BuildTime via -ldflags; a binary
// installed with "go install" falls back to the module and VCS data the Go
// toolchain embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const unset = "dev"

// Set at build time via -ldflags "-X github.com/teranos/cystub/version.Version=v0.3.0".
var (
	Version   = unset
	Commit    = unset
	BuildTime = "unknown"
)

// Info describes one cystub binary.
type Info struct {
	Version   string `json:"version" yaml:"version" toml:"version"`
	Commit    string `json:"commit" yaml:"commit" toml:"commit"`
	BuildTime string `json:"build_time" yaml:"build_time" toml:"build_time"`
	Modified  bool   `json:"modified,omitempty" yaml:"modified,omitempty" toml:"modified,omitempty"`
	GoVersion string `json:"go_version" yaml:"go_version" toml:"go_version"`
	Platform  string `json:"platform" yaml:"platform" toml:"platform"`
}

// Get returns the build information of the running binary.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.fillFrom(bi)
	}
	return info
}

// fillFrom completes fields the linker flags left unset.
func (i *Info) fillFrom(bi *debug.BuildInfo) {
	if i.Version == unset && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		i.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if i.Commit == unset {
				i.Commit = s.Value
			}
		case "vcs.time":
			if i.BuildTime == "unknown" {
				i.BuildTime = s.Value
			}
		case "vcs.modified":
			i.Modified = s.Value == "true"
		}
	}
}

// Semver parses Version, or returns nil for development builds.
func (i Info) Semver() *semver.Version {
	v, err := semver.NewVersion(i.Version)
	if err != nil {
		return nil
	}
	return v
}

// Release reports whether the binary is a tagged, non-prerelease build.
func (i Info) Release() bool {
	v := i.Semver()
	return v != nil && v.Prerelease() == "" && !i.Modified
}

// String renders the one-line banner of "cystub version".
func (i Info) String() string {
	var b strings.Builder
	b.WriteString("cystub ")
	if v := i.Semver(); v != nil {
		b.WriteString("v" + v.String())
	} else {
		b.WriteString(unset)
	}
	fmt.Fprintf(&b, " (commit %s", i.ShortCommit())
	if i.Modified {
		b.WriteString("+dirty")
	}
	fmt.Fprintf(&b, ", built %s)", i.BuildTime)
	return b.String()
}

// ShortCommit abbreviates the commit hash to seven characters.
func (i Info) ShortCommit() string {
	if len(i.Commit) > 7 {
		return i.Commit[:7]
	}
	return i.Commit
}
