// Package logger configures the process-wide zerolog logger and hands
// out component-scoped child loggers.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the global logger instance, configured by Initialize.
var Log zerolog.Logger

// Initialize sets up the global logger. Pretty output is meant for
// interactive development; JSON output (pretty=false) is what the
// gateway runs with in a cluster.
func Initialize(level string, pretty bool) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	Log = log.With().Str("service", "whistler-gateway").Logger()
	Log.Info().Str("level", logLevel.String()).Bool("pretty", pretty).Msg("logger initialized")
}

// Gateway returns a logger scoped to the SSH front-end.
func Gateway() *zerolog.Logger {
	l := Log.With().Str("component", "gateway").Logger()
	return &l
}

// Session returns a logger scoped to one SessionCoordinator.
func Session() *zerolog.Logger {
	l := Log.With().Str("component", "session").Logger()
	return &l
}

// Instance returns a logger scoped to InstanceStore.
func Instance() *zerolog.Logger {
	l := Log.With().Str("component", "instancestore").Logger()
	return &l
}

// Reconciler returns a logger scoped to the reconciliation loop.
func Reconciler() *zerolog.Logger {
	l := Log.With().Str("component", "reconciler").Logger()
	return &l
}
