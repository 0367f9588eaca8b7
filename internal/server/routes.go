package server

import (
	"net/http"

	"github.com/aeo-platform/aeo/backend/internal/server/middleware"
	"github.com/aeo-platform/aeo/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Product routes
	apiRoutes.GET("/products", routes.ListProductsHandler)
	apiRoutes.POST("/products/upload", routes.UploadProductsHandler, middleware.RequirePermission("product.create"))
	apiRoutes.GET("/products/:id", routes.GetProductHandler)
	apiRoutes.GET("/products/:id/score", routes.GetScoreHandler)
	apiRoutes.POST("/products/:id/enrich", routes.EnrichProductHandler, middleware.RequirePermission("product.enrich"))

	// Relationship routes
	apiRoutes.POST("/products/:id/relationships/analyze", routes.AnalyzeRelationshipsHandler, middleware.RequirePermission("graph.analyze"))
	apiRoutes.GET("/products/:id/relationships", routes.GetRelationshipsHandler)
	apiRoutes.GET("/products/:id/recommendations", routes.GetRecommendationsHandler)

	// Graph routes
	apiRoutes.GET("/graph", routes.GetGraphHandler)
	apiRoutes.GET("/graph/products/:id", routes.GetProductGraphHandler)
	apiRoutes.POST("/graph/batch", routes.BatchAnalyzeHandler, middleware.RequirePermission("graph.batch"))
}
