// Package logx configures the shared logrus logger for every service.
package logx

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Setup sets level ("debug", "info", ...) and format ("text" or "json")
// on the standard logrus logger. Unknown levels fall back to info.
func Setup(service, level, format string) *log.Entry {
	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)

	if strings.EqualFold(strings.TrimSpace(format), "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return log.WithField("service", service)
}
