// File: internal/service/components.go
package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/devserver"
	"github.com/xkilldash9x/uiforge/internal/metrics"
	"github.com/xkilldash9x/uiforge/internal/observability"
	"github.com/xkilldash9x/uiforge/internal/orchestrator"
)

// BrowserShutdowner is implemented by session factories that own a browser
// process.
type BrowserShutdowner interface {
	Shutdown(ctx context.Context) error
}

// Components holds the initialized services of one generation run and
// manages their lifecycle.
type Components struct {
	Orchestrator *orchestrator.Orchestrator
	Oracle       schemas.Oracle
	Sessions     schemas.SessionFactory
	Store        schemas.RunStore
	Metrics      *metrics.Recorder
	DBPool       *pgxpool.Pool
	DevServer    *devserver.Manager
}

// Shutdown releases resources in reverse order of creation. It is safe on a
// partially initialized Components.
func (c *Components) Shutdown() {
	logger := observability.GetLogger()
	logger.Debug("Beginning components shutdown sequence.")

	if c.DevServer != nil {
		// Normally stopped by the orchestrator already; this covers aborted runs.
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := c.DevServer.Stop(stopCtx); err != nil {
			logger.Warn("Error stopping the dev server.", zap.Error(err))
		}
		cancel()
	}

	if b, ok := c.Sessions.(BrowserShutdowner); ok && b != nil {
		// The run context may already be canceled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := b.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Error during browser manager shutdown.", zap.Error(err))
		} else {
			logger.Debug("Browser manager shut down.")
		}
	}

	if c.Oracle != nil {
		if err := c.Oracle.Close(); err != nil {
			logger.Warn("Error closing oracle clients.", zap.Error(err))
		}
	}

	if c.DBPool != nil {
		c.DBPool.Close()
		logger.Debug("Database connection pool closed.")
	}

	logger.Debug("All run components shut down.")
}
