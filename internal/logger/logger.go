// Package logger configures the process-wide logrus logger.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Init sets the JSON formatter and the level named by level. Unknown levels
// fall back to info.
func Init(level string) {
	Configure(logrus.StandardLogger(), os.Stdout, level)
}

// Configure applies the application's formatting to l.
func Configure(l *logrus.Logger, out io.Writer, level string) {
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		l.Warnf("unknown log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
}
