package httpapi

import (
	"net/http"

	"airquality/internal/metrics"
	"airquality/internal/modules/airquality/controller"
)

func NewMux(data controller.DatasetProvider, m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, data)
	mux.Handle("GET /metrics", m.Handler())
	return mux
}
