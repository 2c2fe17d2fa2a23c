// Package mlog extends Go's logging functionality to allow for multiple
// destination loggers, each with its own level. Call Init to set up the
// node's loggers, then use the package-level logging functions to send
// messages to all of them.
package mlog

import (
	"fmt"
	"io"
	golog "log"
	"os"
	"sync"
)

type logger interface {
	Println(...interface{})
}

type destination struct {
	logger
	level int
}

var (
	mu   sync.RWMutex
	dsts = make(map[string]*destination)
)

// AddLogger registers a named destination that logs at or above level.
func AddLogger(name string, out io.Writer, level int) {
	mu.Lock()
	defer mu.Unlock()

	dsts[name] = &destination{
		logger: golog.New(out, "", golog.LstdFlags),
		level:  level,
	}
}

// DelLogger removes a previously registered destination.
func DelLogger(name string) {
	mu.Lock()
	defer mu.Unlock()
	delete(dsts, name)
}

// WillLog reports whether a message at level would reach any destination.
// Useful when the formatted message itself is expensive to build.
func WillLog(level int) bool {
	mu.RLock()
	defer mu.RUnlock()

	for _, d := range dsts {
		if d.level <= level {
			return true
		}
	}
	return false
}

// Init registers a stderr destination (when verbose is true) and, if
// logFile is non-empty, a file destination, both at the given level. It
// returns the opened *os.File for the caller to Close on shutdown (nil if
// no file destination was created).
func Init(level int, verbose bool, logFile string) (*os.File, error) {
	if verbose {
		AddLogger("stderr", os.Stderr, level)
	}

	if logFile == "" {
		return nil, nil
	}

	f, err := os.OpenFile(logFile, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	AddLogger("file", f, level)
	return f, nil
}

func write(level int, format string, arg []interface{}) {
	mu.RLock()
	defer mu.RUnlock()

	msg := levelName(level) + " " + fmt.Sprintf(format, arg...)
	for _, d := range dsts {
		if d.level <= level {
			d.Println(msg)
		}
	}
}

func Debug(format string, arg ...interface{}) { write(DEBUG, format, arg) }
func Info(format string, arg ...interface{})  { write(INFO, format, arg) }
func Warn(format string, arg ...interface{})  { write(WARN, format, arg) }
func Error(format string, arg ...interface{}) { write(ERROR, format, arg) }

// Fatal logs at FATAL and terminates the process, matching minilog's
// log.Fatal behavior used throughout the teacher codebase for startup
// failures.
func Fatal(format string, arg ...interface{}) {
	write(FATAL, format, arg)
	os.Exit(1)
}
