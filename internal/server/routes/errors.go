package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/aeo-platform/aeo/backend/internal/server/middleware"
	"github.com/aeo-platform/aeo/backend/pkg/aeo"
	"github.com/aeo-platform/aeo/backend/pkg/ai"
	"github.com/aeo-platform/aeo/backend/pkg/graph"
	"github.com/aeo-platform/aeo/backend/pkg/logger"
	"github.com/aeo-platform/aeo/backend/pkg/store"

	"github.com/labstack/echo/v4"
)

type messageResponse struct {
	Message string `json:"message"`
}

func message(c echo.Context, status int, msg string) error {
	return c.JSON(status, messageResponse{Message: msg})
}

// respondError maps domain errors to HTTP responses. Unexpected errors are
// logged and hidden behind a generic message.
func respondError(c echo.Context, err error, notFound string) error {
	switch {
	case errors.Is(err, aeo.ErrNoEnrichment):
		return message(c, http.StatusNotFound, "Product has not been enriched yet")
	case errors.Is(err, store.ErrNotFound), errors.Is(err, graph.ErrNotFound):
		return message(c, http.StatusNotFound, notFound)
	case errors.Is(err, graph.ErrInvalidEdge):
		return message(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ai.ErrCircuitOpen):
		return message(c, http.StatusServiceUnavailable, "Language model is temporarily unavailable")
	}

	logger.Error("Request failed", "path", c.Path(), "err", err)
	return message(c, http.StatusInternalServerError, "Internal server error")
}

func productID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid product ID")
	}
	return id, nil
}

func app(c echo.Context) *middleware.App {
	return c.(*middleware.AppContext).App
}
