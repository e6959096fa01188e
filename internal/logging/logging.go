package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// New builds a charm logger. Unknown levels fall back to info and unknown
// formats to text.
func New(w io.Writer, level, format string) *log.Logger {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = log.InfoLevel
	}

	formatter := log.TextFormatter
	switch strings.ToLower(format) {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	}

	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Level:           lvl,
		Formatter:       formatter,
	})
}

// Setup installs a charm-backed handler as the slog default.
func Setup(level, format string) *slog.Logger {
	logger := slog.New(New(os.Stderr, level, format))
	slog.SetDefault(logger)
	return logger
}
