package utils

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Logger
}

func InitLogger() *Logger {
	logger := logrus.New()

	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		DisableColors:   false,
		ForceColors:     true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.DebugLevel)

	return &Logger{logger}
}

// SetLevelString applies a textual level, keeping the current one when it is not recognised.
func (l *Logger) SetLevelString(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		l.Warnf("Unknown log level %q, keeping %s", level, l.GetLevel())
		return
	}
	l.SetLevel(parsed)
}

// NewNopLogger returns a logger that discards everything, for tests.
func NewNopLogger() *Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &Logger{logger}
}
