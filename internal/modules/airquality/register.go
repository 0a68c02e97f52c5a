package airquality

import (
	"net/http"

	"airquality/internal/modules/airquality/controller"
)

func RegisterFeature(mux *http.ServeMux, data controller.DatasetProvider) {
	airQualityController := controller.NewAirQualityController(data)
	airQualityController.RegisterRoutes(mux)
}
