// Package log provides the structured logger used throughout the server,
// above the wire-tracing layer in internal/tracing. It wraps logrus the
// way the rest of this corpus does: a package-level logger, fields
// attached with WithField/WithFields, never fmt.Printf.
package log

import "github.com/sirupsen/logrus"

// Std is the process-wide logger. Callers reach for it directly, or via
// the helpers below, rather than constructing their own.
var Std = logrus.StandardLogger()

func init() {
	Std.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// SetLevel adjusts the minimum level logged. It accepts the logrus level
// names ("debug", "info", "warn", "error"); an unrecognized name leaves
// the level unchanged.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return
	}
	Std.SetLevel(lvl)
}

// WithField is shorthand for Std.WithField.
func WithField(key string, value interface{}) *logrus.Entry {
	return Std.WithField(key, value)
}

// WithFields is shorthand for Std.WithFields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Std.WithFields(fields)
}
