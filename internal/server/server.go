package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aeo-platform/aeo/backend/internal/bootstrap"
	"github.com/aeo-platform/aeo/backend/internal/queue"
	mid "github.com/aeo-platform/aeo/backend/internal/server/middleware"
	"github.com/aeo-platform/aeo/backend/internal/storage"
	"github.com/aeo-platform/aeo/backend/internal/util"
	"github.com/aeo-platform/aeo/backend/pkg/ai"
	"github.com/aeo-platform/aeo/backend/pkg/graph"
	"github.com/aeo-platform/aeo/backend/pkg/logger"
	"github.com/aeo-platform/aeo/backend/pkg/store"
	pgstore "github.com/aeo-platform/aeo/backend/pkg/store/pgx"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rabbitmq/amqp091-go"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// New returns an echo instance serving app.
func New(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64M"))

	RegisterRoutes(e)
	return e
}

func Init() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bootstrap.RunMigrations(); err != nil {
		logger.Fatal("Failed to migrate database", "err", err)
	}

	conn, err := bootstrap.NewPool(ctx)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	catalog := pgstore.NewCatalogDBStorageWithConnection(conn)
	g := graph.New(graph.WithPersister(catalog))
	if err := store.RefreshGraph(ctx, catalog, g); err != nil {
		logger.Fatal("Failed to load product graph", "err", err)
	}

	aiClient, err := bootstrap.NewAIClient()
	if err != nil {
		logger.Fatal("Could not create AI client", "err", err)
	}
	guarded := bootstrap.Guard(aiClient)

	orchestrator, err := bootstrap.NewAnalysis(bootstrap.AnalysisParams{
		Client:         guarded,
		ReasoningModel: aiClient.ReasoningModel(),
		Graph:          g,
		Storage:        catalog,
		Pool:           conn,
	})
	if err != nil {
		logger.Fatal("Could not create relationship analysis", "err", err)
	}

	app := &mid.App{
		Storage:      catalog,
		Graph:        g,
		Orchestrator: orchestrator,
		Enricher:     ai.NewEnricher(guarded, ""),
	}

	archive, err := storage.NewUploadArchive(ctx)
	if err != nil {
		logger.Fatal("Failed to create S3 client", "err", err)
	}
	if archive != nil {
		app.Archive = archive
	}

	if util.GetEnv("RABBITMQ_HOST") != "" {
		que := queue.Init()
		defer que.Close()
		ch, err := que.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		defer ch.Close()

		if err := queue.SetupQueues(ch, []string{queue.BatchQueue}); err != nil {
			logger.Fatal("Failed to set up queues", "err", err)
		}
		app.Queue = queue.NewPublisher(ch)

		subCh, err := que.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		defer subCh.Close()
		updates, err := queue.SubscribeTopic(subCh, queue.TopicGraphUpdated)
		if err != nil {
			logger.Fatal("Failed to subscribe to graph updates", "err", err)
		}
		go refreshOnUpdate(ctx, updates, catalog, g)
	} else {
		logger.Warn("RABBITMQ_HOST is not set, asynchronous batches are disabled")
	}

	initAuth(app)

	e := New(app)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}

func initAuth(app *mid.App) {
	app.MasterAPIKey = util.GetEnv("MASTER_API_KEY")
	app.MasterUserID = int64(util.GetEnvInt("MASTER_USER_ID", 0))
	app.MasterUserRole = util.GetEnv("MASTER_USER_ROLE")

	authURL := util.GetEnv("AUTH_URL")
	if authURL != "" {
		k, err := keyfunc.NewDefault([]string{authURL + "/jwks"})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		app.Key = &k
	}

	if authURL == "" && app.MasterAPIKey == "" {
		app.AuthDisabled = true
		logger.Warn("Neither AUTH_URL nor MASTER_API_KEY is set, API authentication is disabled")
	}
}

// refreshOnUpdate reloads the in-memory graph whenever the worker reports a
// finished batch.
func refreshOnUpdate(ctx context.Context, updates <-chan amqp091.Delivery, catalog store.CatalogStorage, g *graph.Store) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-updates:
			if !ok {
				logger.Warn("Graph update subscription closed")
				return
			}
			logger.Info("Refreshing graph after update", "body", string(msg.Body))
			if err := store.RefreshGraph(ctx, catalog, g); err != nil {
				logger.Error("Failed to refresh graph", "err", err)
			}
		}
	}
}
