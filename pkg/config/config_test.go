package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), configFile)
	f, err := createDefaultConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	c, err := readConfig(f)
	if err != nil {
		t.Fatalf("default config does not parse: %v", err)
	}
	if c.Color != "" || c.MaxDepth != nil || c.Jobs != nil || c.NormalizeBackslash {
		t.Fatalf("default config should leave every option unset: %#v", c)
	}
}

func TestReadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), configFile)
	err := os.WriteFile(path, []byte(`color: never
max-depth: 3
jobs: 2
log-output: line,aranges
normalize-backslash: true
substitute-path:
  - {from: /build, to: /src}
`), 0600)
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	c, err := readConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if c.Color != "never" || c.MaxDepth == nil || *c.MaxDepth != 3 || c.Jobs == nil || *c.Jobs != 2 {
		t.Fatalf("wrong config: %#v", c)
	}
	if c.LogOutput != "line,aranges" || !c.NormalizeBackslash {
		t.Fatalf("wrong config: %#v", c)
	}
	if len(c.SubstitutePath) != 1 || c.SubstitutePath[0].From != "/build" || c.SubstitutePath[0].To != "/src" {
		t.Fatalf("wrong substitute-path: %#v", c.SubstitutePath)
	}
}

func TestSubstitute(t *testing.T) {
	c := &Config{SubstitutePath: SubstitutePathRules{
		{From: "/build/", To: "/home/user/src"},
		{From: `C:\build`, To: `D:\src`},
	}}
	tests := []struct {
		in, out string
	}{
		{"/build/main.c", "/home/user/src/main.c"},
		{"/build/lib/util.c", "/home/user/src/lib/util.c"},
		{"/buildx/main.c", "/buildx/main.c"},
		{"/other/main.c", "/other/main.c"},
		{`C:\build\main.c`, `D:\src\main.c`},
	}
	for _, tc := range tests {
		if got := c.Substitute(tc.in); got != tc.out {
			t.Errorf("Substitute(%q) = %q, want %q", tc.in, got, tc.out)
		}
	}
	var nilConfig *Config
	if got := nilConfig.Substitute("/build/a.c"); got != "/build/a.c" {
		t.Errorf("nil config changed path: %q", got)
	}
}
