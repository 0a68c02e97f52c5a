package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"airquality/internal/config"
	"airquality/internal/metrics"
)

// NewServer wraps handler with CORS and request logging. Without configured
// origins the dashboard is same-origin only.
func NewServer(cfg config.Config, handler http.Handler, m *metrics.Metrics, logger *slog.Logger) *http.Server {
	if len(cfg.CORSAllowedOrigins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead},
			AllowedHeaders: []string{"Content-Type", "HX-Request", "HX-Current-URL", "HX-Target", "HX-Trigger"},
		})
		handler = c.Handler(handler)
	}

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           requestLogger(handler, m, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}
