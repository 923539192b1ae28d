package common

import (
	"io"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
)

// SetupLogging installs the apex handler for the given format (text, json or cli)
// and sets the level. Unknown levels fall back to info.
func SetupLogging(level, format string) {
	SetupLoggingTo(os.Stderr, level, format)
}

func SetupLoggingTo(w io.Writer, level, format string) {
	switch strings.ToLower(format) {
	case "json":
		log.SetHandler(json.New(w))
	case "cli":
		log.SetHandler(cli.New(w))
	default:
		log.SetHandler(text.New(w))
	}

	l, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		log.SetLevel(log.InfoLevel)
		log.Warnf("Unknown log level %q, using info", level)
		return
	}
	log.SetLevel(l)
}

// LogResult logs the outcome of a backend call. A status outside 2xx is logged
// as a warning even when err is nil.
func LogResult(msgPrefix string, status int, e error) {
	if e != nil {
		log.Errorf("%s: failed: %v", msgPrefix, e)
		return
	}
	if status < 200 || status > 299 {
		log.Warnf("%s: unexpected status %d", msgPrefix, status)
		return
	}
	log.Debugf("%s: ok (%d)", msgPrefix, status)
}
