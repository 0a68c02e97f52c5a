package httpapi

import (
	"log/slog"
	"net/http"

	"airquality/internal/modules/airquality/controller"
	"airquality/internal/utils"
)

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	data controller.DatasetProvider
}

func NewHealthchecker(data controller.DatasetProvider) healthchecker {
	return &healthcheckerImpl{data: data}
}

// handleHealthz reports healthy only when the source file loads.
func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ds, err := h.data.Get()
	if err != nil {
		slog.Error("healthcheck: dataset unavailable", "error", err)
		utils.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unavailable",
			"message": err.Error(),
		})
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"records": ds.Len(),
		"days":    len(ds.Daily()),
	})
}

func registerHealthcheck(mux *http.ServeMux, data controller.DatasetProvider) {
	healthchecker := NewHealthchecker(data)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
