package common

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// LogLevelEnv names the environment variable holding the default log level.
const LogLevelEnv = "PEHEADER_LOG_LEVEL"

// Log is the process-wide logger. It writes human-readable lines to stderr.
var Log zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).
		With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// DefaultLogLevel returns the level from LogLevelEnv, or "info".
func DefaultLogLevel() string {
	if lvl := strings.TrimSpace(os.Getenv(LogLevelEnv)); lvl != "" {
		return lvl
	}
	return zerolog.InfoLevel.String()
}

// SetLevel sets the global level by name (debug, info, warn, error, ...).
func SetLevel(name string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil {
		return errors.Wrapf(err, "log level %q", name)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

func SetLevelDebug() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}
