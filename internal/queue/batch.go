package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aeo-platform/aeo/backend/pkg/graph"
	"github.com/aeo-platform/aeo/backend/pkg/logger"
)

// ErrMalformed marks messages that can never be processed. They skip the
// retry queue and go straight to the dead letter queue.
var ErrMalformed = errors.New("queue: malformed message")

// BatchMsg asks the worker to run relationship analysis over the catalog.
// An empty ProductIDs selects every product.
type BatchMsg struct {
	CorrelationID  string  `json:"correlation_id"`
	ProductIDs     []int64 `json:"product_ids,omitempty"`
	OnlyUnanalyzed bool    `json:"only_unanalyzed"`
}

// GraphUpdatedMsg is published on TopicGraphUpdated when a batch finished.
type GraphUpdatedMsg struct {
	CorrelationID string            `json:"correlation_id"`
	Result        graph.BatchResult `json:"result"`
	Interrupted   bool              `json:"interrupted,omitempty"`
}

// BatchHandler runs batch messages against an Orchestrator.
//
// Refresh, when set, reloads the graph from durable storage before the run
// so products ingested by other processes are visible. Notify publishes
// the GraphUpdatedMsg; it may be nil.
type BatchHandler struct {
	Orchestrator *graph.Orchestrator
	Refresh      func(ctx context.Context) error
	Notify       func(ctx context.Context, topic string, data []byte) error
}

// ProcessBatchMessage decodes and runs one batch message. Failures of
// single products are counted in the result and do not fail the message.
// An interrupted run returns the context error after publishing the
// partial result. A redelivery keeps the original OnlyUnanalyzed flag, so
// only messages sent with it skip the products already analyzed; others
// re-run the whole selection, replacing the edges written before.
func (h *BatchHandler) ProcessBatchMessage(ctx context.Context, body []byte) error {
	var msg BatchMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	logger.Info("[Queue] Starting batch", "correlation_id", msg.CorrelationID, "products", len(msg.ProductIDs), "only_unanalyzed", msg.OnlyUnanalyzed)

	if h.Refresh != nil {
		if err := h.Refresh(ctx); err != nil {
			return fmt.Errorf("failed to refresh graph: %w", err)
		}
	}

	result, runErr := h.Orchestrator.Run(ctx, graph.BatchOptions{
		ProductIDs:     msg.ProductIDs,
		OnlyUnanalyzed: msg.OnlyUnanalyzed,
		OnProgress: func(p graph.Progress) {
			logger.Debug("[Queue] Batch progress",
				"correlation_id", msg.CorrelationID,
				"product_id", p.ProductID,
				"processed", p.Processed,
				"total", p.Total,
				"relationships", p.RelationshipsFound,
			)
		},
	})

	logger.Info("[Queue] Batch finished",
		"correlation_id", msg.CorrelationID,
		"total", result.TotalProducts,
		"processed", result.Processed,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"relationships", result.TotalRelationships,
	)

	if h.Notify != nil && result.Processed > 0 {
		data, err := json.Marshal(GraphUpdatedMsg{
			CorrelationID: msg.CorrelationID,
			Result:        result,
			Interrupted:   runErr != nil,
		})
		if err != nil {
			return err
		}
		// The graph is already committed; a lost notification only delays
		// the next refresh of the API process.
		notifyCtx := context.WithoutCancel(ctx)
		if err := h.Notify(notifyCtx, TopicGraphUpdated, data); err != nil {
			logger.Error("[Queue] Failed to publish graph update", "correlation_id", msg.CorrelationID, "err", err)
		}
	}

	return runErr
}
