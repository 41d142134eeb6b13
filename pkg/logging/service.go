// Package logging configures the process wide logrus logger.
package logging

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Setup sets the output format and level. Unknown levels fall back to info
// and are reported once the logger is usable.
func Setup(level string) {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	parsed, err := ParseLevel(level)
	log.SetLevel(parsed)
	if err != nil {
		log.Warnf("Unknown log level %q, using %s", level, parsed)
	}
}

func ParseLevel(level string) (log.Level, error) {
	if level == "" {
		return log.InfoLevel, nil
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return log.InfoLevel, err
	}
	return parsed, nil
}
