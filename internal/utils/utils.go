package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"airquality/internal/modules/airquality/pipeline"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON", "error", err)
	}
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]any{
		"error":   http.StatusText(status),
		"message": msg,
	})
}

// WriteDatasetError reports a failure to obtain the dataset. File-level pipeline
// errors mean the backing CSV is unusable, which is a 503 for every route.
func WriteDatasetError(w http.ResponseWriter, err error) {
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":   http.StatusText(http.StatusServiceUnavailable),
			"message": pe.Error(),
			"kind":    pe.Kind,
		})
		return
	}
	slog.Error("dataset load failed", "error", err)
	WriteError(w, http.StatusInternalServerError, "failed to load dataset")
}

// WriteHTML renders into a buffer first so a template failure still produces a
// clean JSON 500 instead of a half-written page.
func WriteHTML(w http.ResponseWriter, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		slog.Error("template render failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("write response failed", "error", err)
	}
}
