package middleware

import (
	"context"

	"github.com/aeo-platform/aeo/backend/internal/queue"
	"github.com/aeo-platform/aeo/backend/pkg/common"
	"github.com/aeo-platform/aeo/backend/pkg/graph"
	"github.com/aeo-platform/aeo/backend/pkg/store"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

// Enricher produces enrichments and embeddings for products.
type Enricher interface {
	Enrich(ctx context.Context, product common.Product) (common.Enrichment, common.EnrichmentUsage, error)
	Embed(ctx context.Context, product common.Product, enrichment *common.Enrichment) ([]float32, error)
}

// Archive keeps a copy of uploaded catalog files.
type Archive interface {
	ArchiveUpload(ctx context.Context, name string, content []byte) (string, error)
}

// BatchQueue hands batch analysis jobs to the worker.
type BatchQueue interface {
	EnqueueBatch(ctx context.Context, msg queue.BatchMsg) error
}

// App holds the process-wide dependencies of the HTTP handlers. Archive,
// Queue and Key are nil when the corresponding service is not configured.
type App struct {
	Storage      store.CatalogStorage
	Graph        *graph.Store
	Orchestrator *graph.Orchestrator
	Enricher     Enricher
	Archive      Archive
	Queue        BatchQueue

	Key            *keyfunc.Keyfunc
	AuthDisabled   bool
	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
