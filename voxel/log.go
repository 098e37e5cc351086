package voxel

import (
	"fmt"
	"strings"
	"time"
)

// ModeFlag is the minimum severity a message needs to be logged.
type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	SilentMode
)

var modeNames = map[ModeFlag]string{
	DebugMode:   "debug",
	InfoMode:    "info",
	WarningMode: "warning",
	ErrorMode:   "error",
	SilentMode:  "silent",
}

func (m ModeFlag) String() string {
	if name, found := modeNames[m]; found {
		return name
	}
	return fmt.Sprintf("mode %d", uint(m))
}

// ParseLogMode returns the mode with the given name, ignoring case.  An empty
// name is InfoMode.
func ParseLogMode(name string) (ModeFlag, error) {
	if name == "" {
		return InfoMode, nil
	}
	for m, s := range modeNames {
		if strings.EqualFold(name, s) {
			return m, nil
		}
	}
	return InfoMode, fmt.Errorf("unknown log level %q", name)
}

var mode = InfoMode

// Logger receives the messages that pass the current mode.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	// Shutdown closes any log file.
	Shutdown()
}

// SetLogMode sets the severity required for a log message to be printed.
// SilentMode turns off all logging.
func SetLogMode(newMode ModeFlag) {
	mode = newMode
}

func Debugf(format string, args ...interface{}) {
	if mode <= DebugMode {
		logger.Debugf(format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if mode <= InfoMode {
		logger.Infof(format, args...)
	}
}

func Warningf(format string, args ...interface{}) {
	if mode <= WarningMode {
		logger.Warningf(format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if mode <= ErrorMode {
		logger.Errorf(format, args...)
	}
}

// Shutdown closes the current logger, e.g., a rotating log file.
func Shutdown() {
	logger.Shutdown()
}

// TimeLog appends the time elapsed since NewTimeLog to its messages.
//
//	tlog := NewTimeLog()
//	...
//	tlog.Infof("Parsed stack %q", name)  // "Parsed stack "x": 1.2s"
type TimeLog struct {
	start time.Time
}

func NewTimeLog() TimeLog {
	return TimeLog{time.Now()}
}

func (t TimeLog) Debugf(format string, args ...interface{}) {
	Debugf(format+": %s\n", append(args, time.Since(t.start))...)
}

func (t TimeLog) Infof(format string, args ...interface{}) {
	Infof(format+": %s\n", append(args, time.Since(t.start))...)
}
