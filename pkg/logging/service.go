package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing text lines with full timestamps to stderr.
// An empty or unknown level falls back to info.
func New(level string) *logrus.Logger {
	return NewWithOutput(level, os.Stderr)
}

func NewWithOutput(level string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		if level != "" {
			log.WithError(err).Warn("unknown log level, using info")
		}
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
