package ollama

import (
	"github.com/aeo-platform/aeo/backend/pkg/ai"
)

// ResetMetrics clears all accumulated token and timing metrics.
func (c *CatalogOllamaClient) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics = ai.ModelMetrics{}
}

// GetMetrics returns the token usage and timing accumulated since the last reset.
func (c *CatalogOllamaClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

func (c *CatalogOllamaClient) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics.Add(m)
}
