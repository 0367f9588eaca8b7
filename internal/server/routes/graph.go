package routes

import (
	"net/http"

	"github.com/aeo-platform/aeo/backend/internal/queue"
	"github.com/aeo-platform/aeo/backend/pkg/graph"
	"github.com/aeo-platform/aeo/backend/pkg/logger"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// AnalyzeRelationshipsHandler infers and replaces the similarity edges of
// one product.
func AnalyzeRelationshipsHandler(c echo.Context) error {
	type analyzeResponse struct {
		RelationshipsCreated int `json:"relationships_created"`
	}

	id, err := productID(c)
	if err != nil {
		return err
	}

	n, err := app(c).Orchestrator.AnalyzeProduct(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err, "Product not found")
	}

	return c.JSON(http.StatusOK, analyzeResponse{RelationshipsCreated: n})
}

// GetRelationshipsHandler lists the outgoing similarity edges of a product,
// strongest first.
func GetRelationshipsHandler(c echo.Context) error {
	id, err := productID(c)
	if err != nil {
		return err
	}

	rels, err := app(c).Graph.Relationships(id)
	if err != nil {
		return respondError(c, err, "Product not found")
	}

	return c.JSON(http.StatusOK, rels)
}

// GetRecommendationsHandler groups the strongest related products by type.
func GetRecommendationsHandler(c echo.Context) error {
	type recommendationsQuery struct {
		Limit int `query:"limit" validate:"min=0,max=100"`
	}

	id, err := productID(c)
	if err != nil {
		return err
	}

	q := new(recommendationsQuery)
	if err := c.Bind(q); err != nil {
		return message(c, http.StatusBadRequest, "Invalid query parameters")
	}
	if err := c.Validate(q); err != nil {
		return message(c, http.StatusBadRequest, "Invalid query parameters")
	}
	if q.Limit == 0 {
		q.Limit = graph.DefaultRecommendationLimit
	}

	recs, err := app(c).Graph.Recommendations(id, q.Limit)
	if err != nil {
		return respondError(c, err, "Product not found")
	}

	return c.JSON(http.StatusOK, recs)
}

// GetProductGraphHandler returns the neighbourhood of a product.
func GetProductGraphHandler(c echo.Context) error {
	id, err := productID(c)
	if err != nil {
		return err
	}

	p, err := app(c).Graph.Project(graph.ProductNodeID(id), graph.DefaultProjectionHops)
	if err != nil {
		return respondError(c, err, "Product not found")
	}

	return c.JSON(http.StatusOK, p)
}

// GetGraphHandler returns the whole graph with size statistics.
func GetGraphHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, app(c).Graph.FullGraph())
}

// BatchAnalyzeHandler runs relationship analysis over many products. With
// async=true the job is handed to the worker and only its correlation id is
// returned.
func BatchAnalyzeHandler(c echo.Context) error {
	type batchBody struct {
		ProductIDs     []int64 `json:"product_ids" validate:"omitempty,dive,gt=0"`
		OnlyUnanalyzed bool    `json:"only_unanalyzed"`
	}

	type batchQueuedResponse struct {
		Message       string `json:"message"`
		CorrelationID string `json:"correlation_id"`
	}

	data := new(batchBody)
	if err := c.Bind(data); err != nil {
		return message(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return message(c, http.StatusBadRequest, "Invalid request body")
	}

	ctx := c.Request().Context()
	a := app(c)

	if c.QueryParam("async") == "true" {
		if a.Queue == nil {
			return message(c, http.StatusServiceUnavailable, "Batch queue is not configured")
		}

		correlationID, err := gonanoid.New()
		if err != nil {
			return respondError(c, err, "")
		}
		err = a.Queue.EnqueueBatch(ctx, queue.BatchMsg{
			CorrelationID:  correlationID,
			ProductIDs:     data.ProductIDs,
			OnlyUnanalyzed: data.OnlyUnanalyzed,
		})
		if err != nil {
			return respondError(c, err, "")
		}

		logger.Info("Queued batch analysis", "correlation_id", correlationID)
		return c.JSON(http.StatusAccepted, batchQueuedResponse{
			Message:       "Batch analysis queued",
			CorrelationID: correlationID,
		})
	}

	res, err := a.Orchestrator.Run(ctx, graph.BatchOptions{
		ProductIDs:     data.ProductIDs,
		OnlyUnanalyzed: data.OnlyUnanalyzed,
	})
	if err != nil {
		// The client went away; the completed part is already committed.
		logger.Warn("Batch analysis interrupted", "processed", res.Processed, "err", err)
	}

	return c.JSON(http.StatusOK, res)
}
