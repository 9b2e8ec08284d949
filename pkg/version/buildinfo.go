package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

func init() {
	buildInfo = func() string {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return "not built in module mode"
		}
		return formatModules(info)
	}
}

// formatModules lists the main module of info followed by its
// dependencies, one per line, noting replaced modules.
func formatModules(info *debug.BuildInfo) string {
	var sb strings.Builder
	writeModule(&sb, "mod", &info.Main)
	for _, dep := range info.Deps {
		writeModule(&sb, "dep", dep)
	}
	return sb.String()
}

func writeModule(sb *strings.Builder, kind string, m *debug.Module) {
	fmt.Fprintf(sb, " %s\t%s\t%s", kind, m.Path, m.Version)
	if m.Sum != "" {
		fmt.Fprintf(sb, "\t%s", m.Sum)
	}
	if m.Replace != nil {
		fmt.Fprintf(sb, "\t=> %s\t%s", m.Replace.Path, m.Replace.Version)
	}
	sb.WriteByte('\n')
}
