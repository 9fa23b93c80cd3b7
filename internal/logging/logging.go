// Package logging supplies the structured-logging helpers shared by every
// subcommand. Initialization itself (parsing -v/-vv/-vvv, wiring a
// destination) is the CLI layer's job; this package only carries the
// library choice and the optional rotation helper, the way the teacher
// module leaves logging backend selection to its cmd/ packages.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// VerbosityToLevel maps the CLI's -v/-vv/-vvv flag count to a logrus level,
// matching the common flag surface named for every subcommand.
func VerbosityToLevel(count int) logrus.Level {
	switch {
	case count >= 3:
		return logrus.TraceLevel
	case count == 2:
		return logrus.DebugLevel
	case count == 1:
		return logrus.InfoLevel
	default:
		return logrus.WarnLevel
	}
}

// NewRotatingWriter returns an io.Writer backed by lumberjack, for callers
// that want file-based log rotation instead of the default stderr stream.
// The binary does not enable this automatically; it is offered as an
// opt-in destination a caller can pass to logrus.SetOutput.
func NewRotatingWriter(path string, maxSizeMB, maxBackups, maxAgeDays int) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
}

// New returns a fresh logrus.Logger at the given level, labeled with a
// component field the way every task in the pipeline identifies itself
// (e.g. "component"="subscription", "url"=...).
func New(component string, level logrus.Level) *logrus.Entry {
	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l.WithField("component", component)
}
