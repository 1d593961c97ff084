package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	logrusPackage = "sirupsen/logrus"
	loggerPackage = "cryptodash/logger."
)

// callerHook rewrites entry.Caller so it names the code that logged rather
// than this package's wrappers.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callerHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 24)
	n := runtime.Callers(4, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !isLoggingFrame(frame.Function) {
			entry.Caller = &frame
			return nil
		}
		if !more {
			return nil
		}
	}
}

func isLoggingFrame(fn string) bool {
	return strings.Contains(fn, logrusPackage) || strings.Contains(fn, loggerPackage)
}
