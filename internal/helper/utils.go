package helper

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/k0kubun/pp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger points the global logger at out with a console writer and the
// given level. An empty level means info.
func SetupLogger(out io.Writer, level string, noColor bool) error {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: noColor}).
		With().Timestamp().Caller().Logger()
	return nil
}

// OpenLogFile opens path for appending, creating its folder first.
func OpenLogFile(path string) (*os.File, error) {
	if err := CreateFolder(filepath.Dir(path)); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

func CreateFolder(path string) error {
	if path == "" || path == "." {
		return nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", path, err)
	}
	return nil
}

// PrettyPrint writes v to w in a readable form.
func PrettyPrint(w io.Writer, v any) {
	if _, err := pp.Fprintln(w, v); err != nil {
		log.Warn().Err(err).Msg("Error pretty printing")
	}
}
