package core

import (
	"log"
	"os"
	"runtime/debug"
	"strings"
)

// Logger is the explicit sink every orchestrator, DB refresh/bootstrap driver,
// and host API client accepts. The matching core itself (C1-C5) never logs;
// only C6/C7 and their CLI callers do, and only through this interface - never
// through a package-level logger.
type Logger interface {
	Debug(...interface{})
	Debugf(string, ...interface{})
	Info(...interface{})
	Infof(string, ...interface{})
	Warn(...interface{})
	Warnf(string, ...interface{})
	Error(...interface{})
	Errorf(string, ...interface{})
	Critical(...interface{})
	Criticalf(string, ...interface{})
}

// DefaultLogger is the default Logger, and wraps the standard log library.
type DefaultLogger struct {
	Verbose bool

	D *log.Logger
	I *log.Logger
	W *log.Logger
	E *log.Logger
}

// NewLogger returns a configured default logger writing to os.Stderr.
func NewLogger() *DefaultLogger {
	return &DefaultLogger{
		D: log.New(os.Stderr, "[DEBUG] ", log.LstdFlags),
		I: log.New(os.Stderr, "[INFO] ", log.LstdFlags),
		W: log.New(os.Stderr, "[WARN] ", log.LstdFlags),
		E: log.New(os.Stderr, "[ERROR] ", log.LstdFlags),
	}
}

// Debug writes to the "debug" logger, only when Verbose is set.
func (d *DefaultLogger) Debug(v ...interface{}) {
	if d.Verbose {
		d.D.Println(v...)
	}
}

// Debugf writes to the "debug" logger with printf-style formatting, only when Verbose is set.
func (d *DefaultLogger) Debugf(f string, v ...interface{}) {
	if d.Verbose {
		d.D.Printf(f, v...)
	}
}

// Info writes to "info" logger.
func (d *DefaultLogger) Info(v ...interface{}) { d.I.Println(v...) }

// Infof writes to "info" logger with printf-style formatting.
func (d *DefaultLogger) Infof(f string, v ...interface{}) { d.I.Printf(f, v...) }

// Warn writes to the "warning" logger.
func (d *DefaultLogger) Warn(v ...interface{}) { d.W.Println(v...) }

// Warnf writes to the "warning" logger with printf-style formatting.
func (d *DefaultLogger) Warnf(f string, v ...interface{}) { d.W.Printf(f, v...) }

// Error writes to the "error" logger.
func (d *DefaultLogger) Error(v ...interface{}) { d.E.Println(v...) }

// Errorf writes to the "error" logger with printf-style formatting.
func (d *DefaultLogger) Errorf(f string, v ...interface{}) { d.E.Printf(f, v...) }

// Critical writes to the "error" logger and logs the current stacktrace.
func (d *DefaultLogger) Critical(v ...interface{}) {
	d.E.Println(v...)
	d.logStacktraceToErr()
}

// Criticalf writes to the "error" logger with printf-style formatting and logs the
// current stacktrace.
func (d *DefaultLogger) Criticalf(f string, v ...interface{}) {
	d.E.Printf(f, v...)
	d.logStacktraceToErr()
}

// logStacktraceToErr prints a stacktrace to the logger's error output,
// skipping the frames for debug.Stack/captureStacktrace/logStacktraceToErr
// itself and its caller, which are never useful to whoever reads the log.
func (d *DefaultLogger) logStacktraceToErr() {
	d.E.Println("stacktrace:\n" + strings.Join(captureStacktrace(4), "\n"))
}

func captureStacktrace(skip int) []string {
	stack := string(debug.Stack())
	lines := strings.Split(stack, "\n")
	linesToSkip := 2*skip + 1
	if linesToSkip > len(lines) {
		return lines
	}
	return lines[linesToSkip:]
}

// NopLogger discards everything. Used where a component accepts a Logger but
// a caller (typically a test) has nothing useful to log to.
type NopLogger struct{}

func (NopLogger) Debug(...interface{})            {}
func (NopLogger) Debugf(string, ...interface{})   {}
func (NopLogger) Info(...interface{})             {}
func (NopLogger) Infof(string, ...interface{})    {}
func (NopLogger) Warn(...interface{})             {}
func (NopLogger) Warnf(string, ...interface{})    {}
func (NopLogger) Error(...interface{})            {}
func (NopLogger) Errorf(string, ...interface{})   {}
func (NopLogger) Critical(...interface{})         {}
func (NopLogger) Criticalf(string, ...interface{}) {}
