package routes

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/aeo-platform/aeo/backend/internal/metrics"
	"github.com/aeo-platform/aeo/backend/pkg/aeo"
	"github.com/aeo-platform/aeo/backend/pkg/common"
	csvloader "github.com/aeo-platform/aeo/backend/pkg/loader/csv"
	"github.com/aeo-platform/aeo/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// maxUploadSize bounds the size of one catalog upload.
const maxUploadSize = 32 << 20

// UploadProductsHandler ingests a CSV catalog from multipart/form-data.
func UploadProductsHandler(c echo.Context) error {
	type uploadResponse struct {
		Success         bool                 `json:"success"`
		Message         string               `json:"message"`
		ProductsCreated int                  `json:"products_created"`
		ProductIDs      []int64              `json:"product_ids"`
		Skipped         int                  `json:"skipped_duplicates"`
		RowErrors       []csvloader.RowError `json:"row_errors,omitempty"`
		ArchiveKey      string               `json:"archive_key,omitempty"`
	}

	file, err := c.FormFile("file")
	if err != nil {
		return message(c, http.StatusBadRequest, "Missing file")
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".csv") {
		return message(c, http.StatusBadRequest, "File must be a CSV")
	}
	if file.Size > maxUploadSize {
		return message(c, http.StatusRequestEntityTooLarge, "File is too large")
	}

	src, err := file.Open()
	if err != nil {
		return message(c, http.StatusBadRequest, "Invalid file")
	}
	defer src.Close()

	content, err := io.ReadAll(io.LimitReader(src, maxUploadSize))
	if err != nil {
		return message(c, http.StatusBadRequest, "Invalid file")
	}

	products, rowErrs, err := csvloader.ParseProducts(content)
	if err != nil {
		return message(c, http.StatusBadRequest, "Error processing CSV: "+err.Error())
	}

	ctx := c.Request().Context()
	a := app(c)

	created, skipped, err := a.Storage.CreateProducts(ctx, products)
	if err != nil {
		return respondError(c, err, "Product not found")
	}
	for _, p := range created {
		a.Graph.PutProduct(p)
	}

	var archiveKey string
	if a.Archive != nil {
		archiveKey, err = a.Archive.ArchiveUpload(ctx, file.Filename, content)
		if err != nil {
			// Products are already stored; the archive copy is best effort.
			logger.Warn("Failed to archive upload", "file", file.Filename, "err", err)
		}
	}

	ids := make([]int64, 0, len(created))
	for _, p := range created {
		ids = append(ids, p.ID)
	}

	logger.Info("Uploaded products", "created", len(created), "skipped", skipped, "row_errors", len(rowErrs))

	return c.JSON(http.StatusCreated, uploadResponse{
		Success:         true,
		Message:         fmt.Sprintf("Successfully uploaded %d products", len(created)),
		ProductsCreated: len(created),
		ProductIDs:      ids,
		Skipped:         skipped,
		RowErrors:       rowErrs,
		ArchiveKey:      archiveKey,
	})
}

// ListProductsHandler pages through the catalog.
func ListProductsHandler(c echo.Context) error {
	type listQuery struct {
		Skip  int `query:"skip" validate:"min=0"`
		Limit int `query:"limit" validate:"min=0,max=1000"`
	}

	q := new(listQuery)
	if err := c.Bind(q); err != nil {
		return message(c, http.StatusBadRequest, "Invalid query parameters")
	}
	if err := c.Validate(q); err != nil {
		return message(c, http.StatusBadRequest, "Invalid query parameters")
	}
	if q.Limit == 0 {
		q.Limit = 100
	}

	ctx := c.Request().Context()
	storage := app(c).Storage

	products, err := storage.ListProducts(ctx, q.Skip, q.Limit)
	if err != nil {
		return respondError(c, err, "Product not found")
	}

	out := make([]common.ProductWithEnrichment, 0, len(products))
	for _, p := range products {
		e, err := storage.LatestEnrichment(ctx, p.ID)
		if err != nil {
			return respondError(c, err, "Product not found")
		}
		out = append(out, common.ProductWithEnrichment{Product: p, Enrichment: e})
	}

	return c.JSON(http.StatusOK, out)
}

// GetProductHandler returns a product together with its latest enrichment.
func GetProductHandler(c echo.Context) error {
	id, err := productID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	storage := app(c).Storage

	p, err := storage.GetProduct(ctx, id)
	if err != nil {
		return respondError(c, err, "Product not found")
	}
	e, err := storage.LatestEnrichment(ctx, id)
	if err != nil {
		return respondError(c, err, "Product not found")
	}

	return c.JSON(http.StatusOK, common.ProductWithEnrichment{Product: p, Enrichment: e})
}

// GetScoreHandler recomputes the AEO score breakdown of the latest enrichment.
func GetScoreHandler(c echo.Context) error {
	id, err := productID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	storage := app(c).Storage

	p, err := storage.GetProduct(ctx, id)
	if err != nil {
		return respondError(c, err, "Product not found")
	}
	e, err := storage.LatestEnrichment(ctx, id)
	if err != nil {
		return respondError(c, err, "Product not found")
	}

	breakdown, err := aeo.Score(p, e)
	if err != nil {
		return respondError(c, err, "Product not found")
	}

	return c.JSON(http.StatusOK, breakdown)
}

// EnrichProductHandler generates, scores and stores a new enrichment. The
// new enrichment supersedes any earlier one.
func EnrichProductHandler(c echo.Context) error {
	type enrichResponse struct {
		Success      bool   `json:"success"`
		Message      string `json:"message"`
		ProductID    int64  `json:"product_id"`
		EnrichmentID int64  `json:"enrichment_id"`
		AEOScore     int    `json:"aeo_score"`
	}

	id, err := productID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	a := app(c)

	p, err := a.Storage.GetProduct(ctx, id)
	if err != nil {
		return respondError(c, err, "Product not found")
	}

	enrichment, usage, err := a.Enricher.Enrich(ctx, p)
	if err != nil {
		logger.Error("Enrichment failed", "product_id", id, "err", err)
		return respondError(c, err, "Product not found")
	}

	breakdown, err := aeo.Score(p, &enrichment)
	if err != nil {
		return respondError(c, err, "Product not found")
	}
	enrichment.AEOScore = breakdown.Total

	saved, err := a.Storage.SaveEnrichment(ctx, enrichment, usage)
	if err != nil {
		return respondError(c, err, "Product not found")
	}
	metrics.AEOScore.Observe(float64(breakdown.Total))

	// The embedding only feeds semantic candidate selection.
	embedding, err := a.Enricher.Embed(ctx, p, &saved)
	if err == nil {
		err = a.Storage.SaveEmbedding(ctx, id, embedding)
	}
	if err != nil {
		logger.Warn("Failed to store product embedding", "product_id", id, "err", err)
	}

	p.EnrichedTitle = saved.EnrichedTitle
	a.Graph.PutProduct(p)

	return c.JSON(http.StatusOK, enrichResponse{
		Success:      true,
		Message:      "Product enriched successfully",
		ProductID:    id,
		EnrichmentID: saved.ID,
		AEOScore:     saved.AEOScore,
	})
}
