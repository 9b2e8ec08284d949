package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestVersionString(t *testing.T) {
	v := Version{Major: "1", Minor: "2", Patch: "3", Metadata: "rc1", Build: "abcdef"}
	s := v.String()
	if !strings.HasPrefix(s, "Version: 1.2.3-rc1\n") {
		t.Fatalf("wrong version string %q", s)
	}
	if !strings.HasSuffix(s, "Build: abcdef") {
		t.Fatalf("explicit build overwritten: %q", s)
	}
	if !strings.Contains(DwarfscanVersion.String(), "Version: "+DwarfscanVersion.Major+".") {
		t.Fatalf("wrong version string %q", DwarfscanVersion.String())
	}
}

func TestRevision(t *testing.T) {
	for _, tc := range []struct {
		settings []debug.BuildSetting
		want     string
	}{
		{nil, ""},
		{[]debug.BuildSetting{{Key: "vcs.revision", Value: "abc123"}}, "abc123"},
		{[]debug.BuildSetting{{Key: "vcs.revision", Value: "abc123"}, {Key: "vcs.modified", Value: "true"}}, "abc123-dirty"},
		{[]debug.BuildSetting{{Key: "gitrevision", Value: "old"}, {Key: "vcs.revision", Value: "new"}}, "new"},
		{[]debug.BuildSetting{{Key: "gitrevision", Value: "old"}}, "old"},
		{[]debug.BuildSetting{{Key: "vcs.modified", Value: "true"}}, ""},
	} {
		if got := revision(&debug.BuildInfo{Settings: tc.settings}); got != tc.want {
			t.Errorf("revision(%v) = %q, want %q", tc.settings, got, tc.want)
		}
	}
}

func TestFormatModules(t *testing.T) {
	info := &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/go-delve/dwarfscan", Version: "(devel)"},
		Deps: []*debug.Module{
			{Path: "github.com/spf13/cobra", Version: "v1.7.0", Sum: "h1:x"},
			{Path: "golang.org/x/sys", Version: "v0.12.0", Replace: &debug.Module{Path: "../sys", Version: ""}},
		},
	}
	want := " mod\tgithub.com/go-delve/dwarfscan\t(devel)\n" +
		" dep\tgithub.com/spf13/cobra\tv1.7.0\th1:x\n" +
		" dep\tgolang.org/x/sys\tv0.12.0\t=> ../sys\t\n"
	if got := formatModules(info); got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}
