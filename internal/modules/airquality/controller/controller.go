package controller

import (
	"net/http"

	"airquality/internal/modules/airquality/pipeline"
)

// DatasetProvider hands out the current pipeline output. cache.Store implements it.
type DatasetProvider interface {
	Get() (*pipeline.Dataset, error)
}

type AirQualityController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type airQualityControllerImpl struct {
	data DatasetProvider
}

func NewAirQualityController(data DatasetProvider) AirQualityController {
	return &airQualityControllerImpl{data: data}
}

func (c *airQualityControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", c.handleDashboard)
	mux.HandleFunc("GET /partials/daily", c.handleDailyPartial)
	mux.HandleFunc("GET /partials/correlation", c.handleCorrelationPartial)
	mux.HandleFunc("GET /partials/preview", c.handlePreviewPartial)

	mux.HandleFunc("GET /api/v1/summary", c.handleSummary)
	mux.HandleFunc("GET /api/v1/daily", c.handleDaily)
	mux.HandleFunc("GET /api/v1/records", c.handleRecords)
	mux.HandleFunc("GET /api/v1/correlation", c.handleCorrelation)
}
