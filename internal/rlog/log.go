// Package rlog provides the structured logger used throughout the domain
// orchestrator and engines, grounded on birdayz-kstreams' pkg/log/log.go
// (zerolog.ConsoleWriter for local/dev, RFC3339Nano timestamps) and its
// NullLogger default in config.go.
package rlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a human-readable console logger writing to stderr, the way
// birdayz-kstreams' log.New does for local development.
func New(level zerolog.Level) zerolog.Logger {
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339Nano}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// Null returns a logger that discards everything, the default for a Domain
// that isn't given an explicit logger (WithLogger option, domain package).
func Null() zerolog.Logger {
	return zerolog.New(io.Discard).Level(zerolog.Disabled)
}
