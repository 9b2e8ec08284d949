package logflags

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var abbrev = false
var info = false
var line = false
var aranges = false
var loader = false
var cache = false

var logOut io.WriteCloser

func makeLogger(level logrus.Level, fields Fields) Logger {
	if lf := loggerFactory; lf != nil {
		return lf(level, fields, logOut)
	}
	logger := logrus.New().WithFields(logrus.Fields(fields))
	logger.Logger.Formatter = DefaultFormatter()
	if logOut != nil {
		logger.Logger.Out = logOut
	}
	logger.Logger.Level = level
	return &logrusLogger{logger}
}

func makeFlaggableLogger(flag bool, fields Fields) Logger {
	if flag {
		return makeLogger(logrus.DebugLevel, fields)
	}
	return makeLogger(logrus.ErrorLevel, fields)
}

// Abbrev returns true if the abbrev package should log.
func Abbrev() bool {
	return abbrev
}

// AbbrevLogger returns a logger for the abbreviation table parser.
func AbbrevLogger() Logger {
	return makeFlaggableLogger(abbrev, Fields{"layer": "dwarf", "kind": "abbrev"})
}

// Info returns true if the debug_info reader should log.
func Info() bool {
	return info
}

// InfoLogger returns a logger for the debug_info reader.
func InfoLogger() Logger {
	return makeFlaggableLogger(info, Fields{"layer": "dwarf", "kind": "info"})
}

// Line returns true if pkg/dwarf/line should log its recoverable
// events, such as skipped vendor opcodes.
func Line() bool {
	return line
}

// LineLogger returns a logger for the line number program interpreter.
func LineLogger() Logger {
	return makeFlaggableLogger(line, Fields{"layer": "dwarf", "kind": "line"})
}

// Aranges returns true if the aranges reader should log.
func Aranges() bool {
	return aranges
}

// ArangesLogger returns a logger for the aranges reader.
func ArangesLogger() Logger {
	return makeFlaggableLogger(aranges, Fields{"layer": "dwarf", "kind": "aranges"})
}

// Loader returns true if the object file loader should log.
func Loader() bool {
	return loader
}

// LoaderLogger returns a logger for the object file loader.
func LoaderLogger() Logger {
	return makeFlaggableLogger(loader, Fields{"layer": "objfile"})
}

// Cache returns true if the debuginfo caches should log hits and misses.
func Cache() bool {
	return cache
}

// CacheLogger returns a logger for the debuginfo caches.
func CacheLogger() Logger {
	return makeFlaggableLogger(cache, Fields{"layer": "debuginfo"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets the logging flags based on the contents of logstr.
// If logDest is not empty logs will be redirected to the file descriptor or
// file path specified by logDest.
func Setup(logFlag bool, logstr, logDest string) error {
	if logDest != "" {
		n, err := strconv.Atoi(logDest)
		if err == nil {
			logOut = os.NewFile(uintptr(n), "dwarfscan-logs")
		} else {
			fh, err := os.Create(logDest)
			if err != nil {
				return fmt.Errorf("could not create log file: %v", err)
			}
			logOut = fh
		}
	}
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(io.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "line"
	}
	v := strings.Split(logstr, ",")
	for _, logcmd := range v {
		switch logcmd {
		case "abbrev":
			abbrev = true
		case "info":
			info = true
		case "line":
			line = true
		case "aranges":
			aranges = true
		case "loader":
			loader = true
		case "cache":
			cache = true
		default:
			fmt.Fprintf(os.Stderr, "Warning: unknown log output value %q, run 'dwarfscan help log' for usage.\n", logcmd)
		}
	}
	return nil
}

// Close closes the logger output.
func Close() {
	if logOut != nil {
		logOut.Close()
	}
}

// textFormatter is a simplified version of logrus.TextFormatter that
// doesn't make logs unreadable when they are output to a text file or to a
// terminal that doesn't support colors.
type textFormatter struct {
}

func (f *textFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteString(entry.Time.Format("2006-01-02T15:04:05Z07:00"))
	b.WriteByte(' ')
	b.WriteString(entry.Level.String())
	b.WriteByte(' ')
	for i, key := range keys {
		b.WriteString(key)
		b.WriteByte('=')
		stringVal, ok := entry.Data[key].(string)
		if !ok {
			stringVal = fmt.Sprint(entry.Data[key])
		}
		if needsQuoting(stringVal) {
			fmt.Fprintf(b, "%q", stringVal)
		} else {
			b.WriteString(stringVal)
		}
		if i != len(keys)-1 {
			b.WriteByte(',')
		} else {
			b.WriteByte(' ')
		}
	}
	b.WriteString(entry.Message)
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func needsQuoting(text string) bool {
	for _, ch := range text {
		if !((ch >= 'a' && ch <= 'z') ||
			(ch >= 'A' && ch <= 'Z') ||
			(ch >= '0' && ch <= '9') ||
			ch == '-' || ch == '.') {
			return true
		}
	}
	return false
}

var textFormatterInstance = &textFormatter{}

// DefaultFormatter provides a simplified version of logrus.TextFormatter that
// doesn't make logs unreadable when they are output to a text file or to a
// terminal that doesn't support colors.
func DefaultFormatter() logrus.Formatter {
	return textFormatterInstance
}
