// Package logging builds the process logger.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing JSON in production and text elsewhere. An
// unknown level falls back to info.
func New(level string, production bool) *logrus.Logger {
	return NewWithOutput(os.Stdout, level, production)
}

func NewWithOutput(out io.Writer, level string, production bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	if production {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
