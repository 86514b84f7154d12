package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options configure the process logger.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// New builds a logrus logger. OMHOME_LOG_LEVEL overrides Options.Level.
func New(opts Options) *logrus.Logger {
	log := logrus.New()

	switch strings.ToLower(opts.Format) {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	default:
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "time",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "msg",
			},
		})
	}

	if opts.Output != nil {
		log.SetOutput(opts.Output)
	} else {
		log.SetOutput(os.Stdout)
	}

	level := opts.Level
	if env := os.Getenv("OMHOME_LOG_LEVEL"); env != "" {
		level = env
	}
	log.SetLevel(ParseLevel(level))
	return log
}

// ParseLevel falls back to info for unknown names.
func ParseLevel(name string) logrus.Level {
	level, err := logrus.ParseLevel(strings.TrimSpace(name))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// Component returns an entry tagged with the component name.
func Component(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("component", name)
}
