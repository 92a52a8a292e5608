package logging

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// CurrentLevel controls which calls produce output: a call is emitted only
// if its own level is at or below CurrentLevel (§6 `--log-level`). It is
// set once at startup from CLI/config, not mutated concurrently
// thereafter.
var CurrentLevel = LevelInfo

// colorEnabled indicates whether console output should be colorized. It is
// disabled automatically when standard error isn't attached to a terminal, so
// redirected logs (e.g. to a file) stay plain.
var colorEnabled = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

// Logger is the main logger type. It has the novel property that it still
// functions if nil, but it doesn't log anything. It wraps the standard
// library logger, so it respects any flags set on that logger (timestamps,
// etc.). It is safe for concurrent usage.
type Logger struct {
	// prefix is any prefix specified for the logger.
	prefix string
}

// RootLogger is the root logger from which all other loggers derive.
var RootLogger = &Logger{}

// Sublogger creates a new sublogger with the specified name.
func (l *Logger) Sublogger(name string) *Logger {
	if l == nil {
		return nil
	}
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}
	return &Logger{prefix: prefix}
}

// output is the internal logging method. It is a no-op if level exceeds
// CurrentLevel.
func (l *Logger) output(calldepth int, level Level, line string) {
	if level > CurrentLevel {
		return
	}
	if l.prefix != "" {
		line = fmt.Sprintf("[%s] %s", l.prefix, line)
	}
	log.Output(calldepth, line)
}

// Print logs information with semantics equivalent to fmt.Print, at
// LevelInfo.
func (l *Logger) Print(v ...interface{}) {
	if l != nil {
		l.output(3, LevelInfo, fmt.Sprint(v...))
	}
}

// Printf logs information with semantics equivalent to fmt.Printf, at
// LevelInfo.
func (l *Logger) Printf(format string, v ...interface{}) {
	if l != nil {
		l.output(3, LevelInfo, fmt.Sprintf(format, v...))
	}
}

// Println logs information with semantics equivalent to fmt.Println, at
// LevelInfo.
func (l *Logger) Println(v ...interface{}) {
	if l != nil {
		l.output(3, LevelInfo, fmt.Sprintln(v...))
	}
}

// Writer returns an io.Writer that writes lines using Println.
func (l *Logger) Writer() io.Writer {
	if l == nil {
		return io.Discard
	}
	return &writer{callback: l.Println}
}

// Debug logs information with semantics equivalent to fmt.Print, at
// LevelDebug.
func (l *Logger) Debug(v ...interface{}) {
	if l != nil {
		l.output(3, LevelDebug, fmt.Sprint(v...))
	}
}

// Debugf logs information with semantics equivalent to fmt.Printf, at
// LevelDebug.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if l != nil {
		l.output(3, LevelDebug, fmt.Sprintf(format, v...))
	}
}

// colorize applies the given color function if color output is enabled.
func colorize(f func(string, ...interface{}) string, format string, v ...interface{}) string {
	if !colorEnabled {
		return fmt.Sprintf(format, v...)
	}
	return f(format, v...)
}

// Warn logs error information with a "[WARN]" tag, colorized yellow, at
// LevelWarn.
func (l *Logger) Warn(err error) {
	if l != nil {
		l.output(3, LevelWarn, colorize(color.YellowString, "[WARN] %v", err))
	}
}

// Error logs error information with an "[ERROR]" tag, colorized red, at
// LevelError. This is the tag required by the console log line taxonomy.
func (l *Logger) Error(err error) {
	if l != nil {
		l.output(3, LevelError, colorize(color.RedString, "[ERROR] %v", err))
	}
}

// Tagged logs a line under one of the fixed console tags defined by the
// service's error/event taxonomy ([IPC], [SKIP], [ADDED], [MODIFIED],
// [DELETED], [RENAMED FROM], [RENAMED TO], [SCAN]), at LevelInfo.
func (l *Logger) Tagged(tag, format string, v ...interface{}) {
	if l != nil {
		l.output(3, LevelInfo, fmt.Sprintf("[%s] %s", tag, fmt.Sprintf(format, v...)))
	}
}
