// Package admin serves the operational HTTP surface: health probes, the
// live connection list and runtime log level.
package admin

import (
	"context"
	"log/slog"

	"github.com/gymgate/access-router/internal/hub"
	"github.com/gymgate/access-router/internal/scanmode"
)

// Pinger reports storage reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Connections lists live websocket clients. *hub.Hub implements it.
type Connections interface {
	Count() int
	Snapshot() []hub.Info
}

// ScanModes reports an operator's scan mode. *scanmode.Registry implements it.
type ScanModes interface {
	Flags(operatorID int64) scanmode.Flags
}

// Handler provides the admin endpoints.
type Handler struct {
	storage     Pinger
	connections Connections
	modes       ScanModes
	logger      *slog.Logger
	logLevel    *slog.LevelVar
}

// NewHandler creates an admin handler. A nil logLevel gets a private
// LevelVar and a nil logger falls back to slog.Default().
func NewHandler(storage Pinger, connections Connections, modes ScanModes, logLevel *slog.LevelVar, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if logLevel == nil {
		logLevel = new(slog.LevelVar)
	}
	return &Handler{
		storage:     storage,
		connections: connections,
		modes:       modes,
		logger:      logger,
		logLevel:    logLevel,
	}
}
