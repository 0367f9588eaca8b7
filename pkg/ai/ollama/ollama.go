package ollama

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/aeo-platform/aeo/backend/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// CatalogOllamaClient implements ai.GraphAIClient on a self-hosted Ollama server.
//
// A CatalogOllamaClient should be created using NewCatalogOllamaClient.
type CatalogOllamaClient struct {
	embeddingModel  string
	enrichmentModel string
	reasoningModel  string
	dimensions      int

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	Client *api.Client
}

// NewCatalogOllamaClientParams contains configuration options for a CatalogOllamaClient.
type NewCatalogOllamaClientParams struct {
	EmbeddingModel  string
	EnrichmentModel string
	ReasoningModel  string
	Dimensions      int

	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewCatalogOllamaClient connects to the Ollama server at BaseURL, or the
// library default when empty.
func NewCatalogOllamaClient(params NewCatalogOllamaClientParams) (*CatalogOllamaClient, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := http.DefaultClient
	if params.ApiKey != "" {
		httpClient = &http.Client{
			Transport: &headerTransport{
				headers: map[string]string{
					"Authorization": "Bearer " + params.ApiKey,
				},
				rt: http.DefaultTransport,
			},
		}
	}

	parallel := params.MaxConcurrentRequests
	if parallel <= 0 {
		parallel = 1
	}
	dim := params.Dimensions
	if dim <= 0 {
		dim = defaultDimensions
	}
	reasoning := params.ReasoningModel
	if reasoning == "" {
		reasoning = params.EnrichmentModel
	}

	return &CatalogOllamaClient{
		embeddingModel:  params.EmbeddingModel,
		enrichmentModel: params.EnrichmentModel,
		reasoningModel:  reasoning,
		dimensions:      dim,

		reqLock: semaphore.NewWeighted(parallel),

		Client: api.NewClient(u, httpClient),
	}, nil
}

// ReasoningModel returns the model configured for relationship reasoning.
func (c *CatalogOllamaClient) ReasoningModel() string {
	return c.reasoningModel
}
