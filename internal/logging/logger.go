package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger from environment variables.
// PPTC_LOG_LEVEL controls the log level: debug, info, warn, error
// (default: info). PPTC_LOG_FILE, when set, appends JSON log lines to that
// file in addition to the console output on stderr.
func Init() {
	level := os.Getenv("PPTC_LOG_LEVEL")
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr}

	if path := os.Getenv("PPTC_LOG_FILE"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Logger = log.Output(console)
			log.Warn().Err(err).Str("path", path).Msg("Cannot open log file, logging to console only")
			return
		}
		log.Logger = log.Output(zerolog.MultiLevelWriter(console, f))
		return
	}

	log.Logger = log.Output(console)
}
