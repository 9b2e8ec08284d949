package cmds

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/go-delve/dwarfscan/pkg/config"
	"github.com/go-delve/dwarfscan/pkg/dwarf/debuginfo"
	"github.com/go-delve/dwarfscan/pkg/logflags"
	"github.com/go-delve/dwarfscan/pkg/objfile"
	"github.com/go-delve/dwarfscan/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// color selects when output is colored.
	color = colorMode("auto")

	// maxDepth limits the depth of the entries printed by info.
	maxDepth int
	// unitOffset selects the unit printed by info.
	unitOffset string
	// jobs is the number of units verify decodes concurrently.
	jobs int

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

const dwarfscanCommandLongDesc = `dwarfscan decodes the DWARF debugging information of executables.

It reads the .debug_info, .debug_abbrev, .debug_line, .debug_aranges and
.debug_str sections of ELF, Mach-O and PE files. DWARF versions 2, 3 and 4
are supported, in the 32-bit format.`

// New returns an initialized command tree.
func New() *cobra.Command {
	// Config setup and load.
	conf = config.LoadConfig()

	// Main dwarfscan root command.
	rootCommand = &cobra.Command{
		Use:          "dwarfscan",
		Short:        "dwarfscan is a decoder for DWARF debugging information.",
		Long:         dwarfscanCommandLongDesc,
		SilenceUsage: true,
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable decoder logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'dwarfscan help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'dwarfscan help log').")
	rootCommand.PersistentFlags().Var(&color, "color", "Color output: auto, always or never.")

	// 'info' subcommand.
	infoCommand := &cobra.Command{
		Use:   "info <binary>",
		Short: "Print the debugging information entries.",
		Long: `Prints every debugging information entry of every compilation unit, indented
by nesting depth, with its attributes.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			unit := int64(-1)
			if unitOffset != "" {
				off, err := strconv.ParseUint(unitOffset, 0, 63)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Invalid unit offset %q: %v\n", unitOffset, err)
					os.Exit(1)
				}
				unit = int64(off)
			}
			depth := maxDepth
			if !cmd.Flags().Changed("max-depth") && conf.MaxDepth != nil {
				depth = *conf.MaxDepth
			}
			os.Exit(execute(args[0], func(p *printer, d *debuginfo.Data) error {
				return dumpInfo(p, d, unit, depth)
			}))
		},
	}
	infoCommand.Flags().IntVar(&maxDepth, "max-depth", -1, "Do not print entries nested deeper than this (-1 for no limit).")
	infoCommand.Flags().StringVar(&unitOffset, "unit", "", "Only print the unit at this .debug_info offset.")
	rootCommand.AddCommand(infoCommand)

	// 'line' subcommand.
	rootCommand.AddCommand(&cobra.Command{
		Use:   "line <binary>",
		Short: "Print the line number tables.",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(execute(args[0], dumpLines))
		},
	})

	// 'aranges' subcommand.
	rootCommand.AddCommand(&cobra.Command{
		Use:   "aranges <binary>",
		Short: "Print the address range table.",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(execute(args[0], dumpAranges))
		},
	})

	// 'addr2line' subcommand.
	rootCommand.AddCommand(&cobra.Command{
		Use:   "addr2line <binary> <address>...",
		Short: "Print the source position of addresses.",
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(execute(args[0], func(p *printer, d *debuginfo.Data) error {
				return addr2line(p, d, args[1:])
			}))
		},
	})

	// 'files' subcommand.
	rootCommand.AddCommand(&cobra.Command{
		Use:   "files <binary> [prefix]",
		Short: "List source files.",
		Args:  cobra.RangeArgs(1, 2),
		Run: func(cmd *cobra.Command, args []string) {
			prefix := ""
			if len(args) > 1 {
				prefix = args[1]
			}
			os.Exit(execute(args[0], func(p *printer, d *debuginfo.Data) error {
				return listFiles(p, d, prefix)
			}))
		},
	})

	// 'verify' subcommand.
	verifyCommand := &cobra.Command{
		Use:   "verify <binary>",
		Short: "Decode all debugging information and report errors.",
		Long: `Decodes every entry of every compilation unit and runs every line number
program, reporting every decoding error found. The exit status is 1 if any
error was found.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			n := jobs
			if !cmd.Flags().Changed("jobs") && conf.Jobs != nil {
				n = *conf.Jobs
			}
			os.Exit(execute(args[0], func(p *printer, d *debuginfo.Data) error {
				return verifyCmd(p, d, n)
			}))
		},
	}
	verifyCommand.Flags().IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "Number of units decoded concurrently.")
	rootCommand.AddCommand(verifyCommand)

	// 'version' subcommand.
	var buildInfo bool
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dwarfscan\n%s\n", version.DwarfscanVersion)
			if buildInfo {
				fmt.Printf("%s\n", version.BuildInfo())
			}
		},
	}
	versionCommand.Flags().BoolVarP(&buildInfo, "verbose", "v", false, "print build info")
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:


	abbrev		Log abbreviation table parsing
	info		Log every decoded entry
	line		Log skipped vendor opcodes in line number programs (default)
	aranges		Log address range sets
	loader		Log executable loading and section sizes
	cache		Log abbreviation and line table cache misses

Additionally --log-dest can be used to specify where the logs should be
written. 
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.

`,
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

// execute opens the executable at path and calls fn with its debugging
// information. It returns the exit status of the command.
func execute(path string, fn func(p *printer, d *debuginfo.Data) error) int {
	if err := logflags.Setup(log, logOutputFor(log, logOutput, conf), logDest); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer logflags.Close()

	mode := string(color)
	if (rootCommand == nil || !rootCommand.PersistentFlags().Changed("color")) && conf.Color != "" {
		mode = conf.Color
	}
	p, flush, err := newStdoutPrinter(mode, conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	f, err := objfile.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not open %s: %v\n", path, err)
		return 1
	}
	defer f.Close()

	d, err := f.DebugInfo(debuginfo.Config{NormalizeBackslash: conf.NormalizeBackslash})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	err = fn(p, d)
	if ferr := flush(); err == nil {
		err = ferr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return 0
}

// logOutputFor returns the components to log. The log-output key of the
// configuration file only applies when logging was enabled with --log.
func logOutputFor(logFlag bool, flagValue string, conf *config.Config) string {
	if flagValue != "" || !logFlag || conf == nil {
		return flagValue
	}
	return conf.LogOutput
}

var errVerifyFailed = errors.New("verification failed")

func verifyCmd(p *printer, d *debuginfo.Data, jobs int) error {
	stats, errs := verify(context.Background(), d, jobs)
	for _, err := range errs {
		p.errorf("%v", err)
	}
	p.printf("%d units, %d entries, %d line rows, %d errors\n", stats.units.Load(), stats.entries.Load(), stats.rows.Load(), len(errs))
	if len(errs) > 0 {
		return errVerifyFailed
	}
	return nil
}
