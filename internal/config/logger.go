package config

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewLogger builds the slog logger described by l. The auto format writes
// text to a terminal and JSON otherwise.
func (l LogConfig) NewLogger(out *os.File) *slog.Logger {
	return slog.New(l.handler(out, term.IsTerminal(int(out.Fd()))))
}

func (l LogConfig) handler(w io.Writer, tty bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	switch l.Format {
	case "json":
		return slog.NewJSONHandler(w, opts)
	case "text":
		return slog.NewTextHandler(w, opts)
	}
	if tty {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}
