package lib

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"
)

type LogType int

const (
	TypeDebug LogType = iota
	TypeInfo
	TypeSuccess
	TypeWarn
	TypeError
)

var logTypeNames = map[string]LogType{
	"debug":   TypeDebug,
	"info":    TypeInfo,
	"success": TypeSuccess,
	"warn":    TypeWarn,
	"error":   TypeError,
}

// ParseLogType maps a level name from config or flags to a LogType.
func ParseLogType(s string) (LogType, error) {
	t, ok := logTypeNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return TypeInfo, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, s)
	}
	return t, nil
}

type levelStyle struct {
	label string
	color *color.Color
}

var styles = map[LogType]levelStyle{
	TypeDebug:   {"DEBUG:", color.New(color.FgHiBlack)},
	TypeInfo:    {"INFO:", color.New(color.FgCyan)},
	TypeSuccess: {"SUCCESS:", color.New(color.FgGreen)},
	TypeWarn:    {"WARN:", color.New(color.FgYellow)},
	TypeError:   {"ERROR:", color.New(color.FgRed)},
}

// Logger writes one line per message with a level prefix. Colours are only
// used when the destination is a terminal, unless overridden.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	min    LogType
	prefix string
	colors bool
}

func NewLogger(w io.Writer) *Logger {
	return &Logger{out: w, min: TypeInfo, colors: isTerminal(w)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (l *Logger) SetLevel(t LogType) {
	l.mu.Lock()
	l.min = t
	l.mu.Unlock()
}

func (l *Logger) SetColor(on bool) {
	l.mu.Lock()
	l.colors = on
	l.mu.Unlock()
}

// SetPrefix sets text printed after the level label, e.g. "[worker 42]".
func (l *Logger) SetPrefix(p string) {
	l.mu.Lock()
	l.prefix = p
	l.mu.Unlock()
}

func (l *Logger) Enabled(t LogType) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return t >= l.min
}

func (l *Logger) Logf(t LogType, format string, a ...interface{}) {
	l.write(t, fmt.Sprintf(format, a...))
}

func (l *Logger) write(t LogType, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t < l.min {
		return
	}

	style := styles[t]
	label := style.label
	if l.colors {
		c := *style.color
		c.EnableColor()
		label = c.Sprint(style.label)
	}

	line := label + " "
	if l.prefix != "" {
		line += l.prefix + " "
	}
	fmt.Fprintln(l.out, line+msg)
}

var std = NewLogger(os.Stderr)

// DefaultLogger returns the logger behind the package level Log functions.
func DefaultLogger() *Logger { return std }

// SetLogger replaces the package level logger. Nil restores stderr output.
func SetLogger(l *Logger) {
	if l == nil {
		l = NewLogger(os.Stderr)
	}
	std = l
}

func LogDebug(format string, a ...interface{}) {
	std.Logf(TypeDebug, format, a...)
}

func LogInfo(format string, a ...interface{}) {
	std.Logf(TypeInfo, format, a...)
}

func LogSuccess(format string, a ...interface{}) {
	std.Logf(TypeSuccess, format, a...)
}

func LogWarn(format string, a ...interface{}) {
	std.Logf(TypeWarn, format, a...)
}

// LogError logs and returns the message as an error.
func LogError(format string, a ...interface{}) error {
	msg := fmt.Sprintf(format, a...)
	std.write(TypeError, msg)
	return errors.New(msg)
}

// Environment variables through which a supervisor hands its log settings
// down to the workers it spawns.
const (
	LogLevelEnv = "REAPTREE_LOG_LEVEL"
	LogColorEnv = "REAPTREE_LOG_COLOR"
)

// ConfigureFromEnv applies LogLevelEnv and LogColorEnv to l, ignoring
// values it does not understand.
func (l *Logger) ConfigureFromEnv() {
	if v := os.Getenv(LogLevelEnv); v != "" {
		if t, err := ParseLogType(v); err == nil {
			l.SetLevel(t)
		}
	}
	switch os.Getenv(LogColorEnv) {
	case "always":
		l.SetColor(true)
	case "never":
		l.SetColor(false)
	}
}
