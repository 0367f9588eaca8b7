package openai

import (
	"context"
	"sync"

	"github.com/aeo-platform/aeo/backend/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

const defaultDimensions = 1536

// CatalogOpenAIClient talks to an OpenAI compatible API. Chat completions
// and embeddings may be served by different endpoints.
//
// A CatalogOpenAIClient should be created using NewCatalogOpenAIClient.
type CatalogOpenAIClient struct {
	embeddingModel  string
	enrichmentModel string
	reasoningModel  string
	dimensions      int

	chatURL string

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewCatalogOpenAIClientParams defines the configuration of a CatalogOpenAIClient.
//
// EnrichmentModel is the default chat model. ReasoningModel is exposed for
// callers that want a different model for relationship reasoning.
// Dimensions is the embedding size; vectors are truncated or zero padded to it.
// ParallelRequests caps in-flight requests and defaults to 4.
type NewCatalogOpenAIClientParams struct {
	EmbeddingModel  string
	EnrichmentModel string
	ReasoningModel  string
	Dimensions      int

	EmbeddingURL string
	EmbeddingKey string
	ChatURL      string
	ChatKey      string

	ParallelRequests int64
}

// NewCatalogOpenAIClient creates a CatalogOpenAIClient.
//
// Example:
//
//	client := openai.NewCatalogOpenAIClient(openai.NewCatalogOpenAIClientParams{
//		EmbeddingModel:  "text-embedding-3-small",
//		EnrichmentModel: "gpt-4o-mini",
//		ChatKey:         os.Getenv("AI_CHAT_KEY"),
//		EmbeddingKey:    os.Getenv("AI_EMBED_KEY"),
//	})
func NewCatalogOpenAIClient(params NewCatalogOpenAIClientParams) *CatalogOpenAIClient {
	dim := params.Dimensions
	if dim <= 0 {
		dim = defaultDimensions
	}
	parallel := params.ParallelRequests
	if parallel <= 0 {
		parallel = 4
	}
	reasoning := params.ReasoningModel
	if reasoning == "" {
		reasoning = params.EnrichmentModel
	}

	return &CatalogOpenAIClient{
		embeddingModel:  params.EmbeddingModel,
		enrichmentModel: params.EnrichmentModel,
		reasoningModel:  reasoning,
		dimensions:      dim,

		chatURL: params.ChatURL,
		reqLock: semaphore.NewWeighted(parallel),

		ChatClient:      newOpenaiClient(params.ChatURL, params.ChatKey),
		EmbeddingClient: newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}

// ReasoningModel returns the model configured for relationship reasoning.
func (c *CatalogOpenAIClient) ReasoningModel() string {
	return c.reasoningModel
}

// LoadModel is a no-op for hosted APIs.
func (c *CatalogOpenAIClient) LoadModel(ctx context.Context, opts ...ai.GenerateOption) error {
	return nil
}

func (c *CatalogOpenAIClient) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics.Add(m)
}

func (c *CatalogOpenAIClient) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics = ai.ModelMetrics{}
}

func (c *CatalogOpenAIClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}
