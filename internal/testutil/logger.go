package testutil

import (
	"io"
	"log/slog"
)

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Uint64 returns a pointer to v, for optional seed fields.
func Uint64(v uint64) *uint64 {
	return &v
}
