package observability

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/SteelMorgan/logscan/internal/rotating"
)

// InitLogger initializes the global logger with the specified level.
// Console output goes to stderr in human-readable form. If logFile is set,
// JSON lines are also appended to logFile.YYYY-MM-DD with logFile kept as a
// symlink to the current day, so several scan processes can share it.
// The returned function closes the log file.
func InitLogger(level string, logFile string) func() error {
	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "2006-01-02 15:04:05",
	}

	var out io.Writer = consoleWriter
	closeFn := func() error { return nil }

	if logFile != "" {
		fileWriter := rotating.New(logFile)
		out = zerolog.MultiLevelWriter(consoleWriter, fileWriter)
		closeFn = fileWriter.Close
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	// The file writer keeps its default Nop logger: logging from inside its
	// Write would re-enter it.
	logLevel := parseLogLevel(level)
	zerolog.SetGlobalLevel(logLevel)

	log.Debug().
		Str("level", logLevel.String()).
		Str("file", logFile).
		Msg("Logger initialized")

	return closeFn
}

// Component returns a child of the global logger tagged with component
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// parseLogLevel parses a string log level to zerolog.Level
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}
