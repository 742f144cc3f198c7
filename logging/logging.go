package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
)

// Logger is the shared logger. It discards everything until Initialize is called.
var Logger = slog.New(log.NewWithOptions(io.Discard, log.Options{}))

// Initialize points the logger at w. Only warnings and errors are shown unless debug
// is set, either by the caller or through AWSNAV_DEBUG=1.
func Initialize(w io.Writer, debug bool) {
	if os.Getenv("AWSNAV_DEBUG") == "1" {
		debug = true
	}

	level := log.WarnLevel
	if debug {
		level = log.DebugLevel
	}

	handler := log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          "awsnav",
		ReportTimestamp: debug,
	})
	Logger = slog.New(handler)

	Logger.Debug("Debug logging enabled")
}
