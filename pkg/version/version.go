// Package version reports the release and the build of the dwarfscan
// binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Version is a dwarfscan release. Build is the commit the binary was built
// from, when known.
type Version struct {
	Major    string
	Minor    string
	Patch    string
	Metadata string
	Build    string
}

// DwarfscanVersion is the release printed by 'dwarfscan version'.
var DwarfscanVersion = Version{
	Major: "0", Minor: "3", Patch: "0", Metadata: "",
	Build: "$Id$",
}

func (v Version) String() string {
	if strings.HasPrefix(v.Build, "$Id$") {
		if info, ok := debug.ReadBuildInfo(); ok {
			if rev := revision(info); rev != "" {
				v.Build = rev
			}
		}
	}
	ver := fmt.Sprintf("Version: %s.%s.%s", v.Major, v.Minor, v.Patch)
	if v.Metadata != "" {
		ver += "-" + v.Metadata
	}
	return fmt.Sprintf("%s\nBuild: %s", ver, v.Build)
}

var buildInfo = func() string {
	return ""
}

// BuildInfo returns the Go version and the modules linked into dwarfscan.
func BuildInfo() string {
	return fmt.Sprintf("%s\n%s", runtime.Version(), buildInfo())
}

// revision returns the VCS commit stamped into info, with a -dirty suffix
// for binaries built from a modified tree.
func revision(info *debug.BuildInfo) string {
	var rev string
	modified := false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			rev = setting.Value
		case "gitrevision":
			if rev == "" {
				rev = setting.Value
			}
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if rev != "" && modified {
		rev += "-dirty"
	}
	return rev
}
