// Package monitoring holds the process-wide diagnostic logger shared by the
// tracker, ingest and transport packages.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Scoped returns a logger that tags every line with "[scope] " and forwards to
// whatever Logf is current at call time, so SetLogger still applies after the
// scoped logger has been created.
func Scoped(scope string) func(format string, v ...interface{}) {
	prefix := "[" + scope + "] "
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}
