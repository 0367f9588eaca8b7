// Package bootstrap builds the dependencies shared by the API server and
// the worker from environment configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/aeo-platform/aeo/backend/internal/util"
	"github.com/aeo-platform/aeo/backend/pkg/ai"
	oai "github.com/aeo-platform/aeo/backend/pkg/ai/ollama"
	gai "github.com/aeo-platform/aeo/backend/pkg/ai/openai"
	"github.com/aeo-platform/aeo/backend/pkg/graph"
	"github.com/aeo-platform/aeo/backend/pkg/leaselock"
	"github.com/aeo-platform/aeo/backend/pkg/logger"
	"github.com/aeo-platform/aeo/backend/pkg/logger/console"
	pgstore "github.com/aeo-platform/aeo/backend/pkg/store/pgx"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// InitLogger installs the console logger configured by DEBUG and LOG_FORMAT.
func InitLogger(prefix string) {
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  util.GetEnvBool("DEBUG", false),
		Format: util.GetEnvString("LOG_FORMAT", "text"),
		Prefix: prefix,
	}))
}

// RunMigrations applies every pending migration from MIGRATIONS_PATH.
func RunMigrations() error {
	path := util.GetEnvString("MIGRATIONS_PATH", "migrations")
	m, err := migrate.New("file://"+path, util.GetEnv("DATABASE_URL"))
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// NewPool connects to DATABASE_URL with the pgvector types registered on
// every connection.
func NewPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(util.GetEnv("DATABASE_URL"))
	if err != nil {
		return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// AIClient is a language model client that also names the model used for
// relationship reasoning.
type AIClient interface {
	ai.GraphAIClient
	ReasoningModel() string
}

// NewAIClient builds the adapter selected by AI_ADAPTER.
func NewAIClient() (AIClient, error) {
	adapter := util.GetEnv("AI_ADAPTER")

	switch adapter {
	case "ollama":
		client, err := oai.NewCatalogOllamaClient(oai.NewCatalogOllamaClientParams{
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),
			EnrichmentModel: util.GetEnv("AI_CHAT_DESCRIBE_MODEL"),
			ReasoningModel:  util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			Dimensions:      util.GetEnvInt("AI_EMBED_DIM", 0),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvInt("AI_PARALLEL_REQ", 1)),
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case "openai", "":
		return gai.NewCatalogOpenAIClient(gai.NewCatalogOpenAIClientParams{
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),
			EnrichmentModel: util.GetEnv("AI_CHAT_DESCRIBE_MODEL"),
			ReasoningModel:  util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			Dimensions:      util.GetEnvInt("AI_EMBED_DIM", 0),

			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),

			ParallelRequests: int64(util.GetEnvInt("AI_PARALLEL_REQ", 4)),
		}), nil
	default:
		return nil, fmt.Errorf("unknown AI_ADAPTER %q", adapter)
	}
}

// Guard wraps client with the per-call timeout and circuit breaker.
func Guard(client ai.GraphAIClient) *ai.GuardedClient {
	return ai.NewGuardedClient(client, ai.GuardParams{
		Name:          util.GetEnvString("AI_ADAPTER", "openai"),
		Timeout:       util.GetEnvDuration("AI_TIMEOUT", 0),
		RatePerSecond: util.GetEnvNumeric("AI_CALL_RATE_PER_SEC", 0),
		Burst:         util.GetEnvInt("AI_CALL_BURST", 1),
		MaxFailures:   uint32(util.GetEnvInt("AI_BREAKER_FAILURES", 0)),
		OpenTimeout:   util.GetEnvDuration("AI_BREAKER_OPEN_TIMEOUT", 0),
	})
}

// NewCandidatePolicy returns the policy selected by CANDIDATE_POLICY.
func NewCandidatePolicy(policy string, g *graph.Store, storage *pgstore.CatalogDBStorage) (graph.CandidatePolicy, error) {
	limit := util.GetEnvInt("CANDIDATE_LIMIT", graph.DefaultCandidateLimit)

	switch policy {
	case "catalog", "":
		return graph.CatalogCandidates{Store: g, Limit: limit}, nil
	case "category":
		return graph.CategoryCandidates{Store: g, Limit: limit}, nil
	case "semantic":
		return pgstore.SemanticCandidates{Storage: storage, Graph: g, Limit: limit}, nil
	default:
		return nil, fmt.Errorf("unknown CANDIDATE_POLICY %q", policy)
	}
}

// AnalysisParams carries what NewAnalysis needs besides configuration.
// Pool enables cross-process product leases.
type AnalysisParams struct {
	Client         ai.GraphAIClient
	ReasoningModel string
	Graph          *graph.Store
	Storage        *pgstore.CatalogDBStorage
	Pool           *pgxpool.Pool
}

// NewAnalysis builds the orchestrator that runs relationship analysis for
// single products and batches. With a Pool, analyses are serialized per
// product across processes with row leases.
func NewAnalysis(params AnalysisParams) (*graph.Orchestrator, error) {
	reasoner, err := ai.NewRelationshipReasoner(ai.NewRelationshipReasonerParams{
		Client:          params.Client,
		Model:           params.ReasoningModel,
		MaxPromptTokens: util.GetEnvInt("AI_MAX_PROMPT_TOKENS", 0),
	})
	if err != nil {
		return nil, err
	}

	candidates, err := NewCandidatePolicy(util.GetEnv("CANDIDATE_POLICY"), params.Graph, params.Storage)
	if err != nil {
		return nil, err
	}

	analyzer, err := graph.NewAnalyzer(graph.NewAnalyzerParams{
		Store:      params.Graph,
		Reasoner:   reasoner,
		Candidates: candidates,
		Timeout:    util.GetEnvDuration("AI_TIMEOUT", 0),
		MaxRetries: util.GetEnvInt("AI_MAX_RETRIES", 0),
	})
	if err != nil {
		return nil, err
	}

	var locker graph.Locker
	if params.Pool != nil {
		locker = leaselock.NewProductLocker(leaselock.New(params.Pool), util.GetEnvDuration("ANALYSIS_LEASE_TTL", 0))
	}

	orchestrator, err := graph.NewOrchestrator(graph.NewOrchestratorParams{
		Analyzer:       analyzer,
		Workers:        util.GetEnvInt("BATCH_WORKERS", 4),
		RatePerSecond:  util.GetEnvNumeric("AI_RATE_PER_SEC", 0),
		Locker:         locker,
		ProductTimeout: util.GetEnvDuration("BATCH_PRODUCT_TIMEOUT", 0),
	})
	if err != nil {
		return nil, err
	}

	return orchestrator, nil
}
