package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"airquality/internal/modules/airquality/pipeline"
)

func TestWriteJSON(t *testing.T) {
	t.Run("sets content-type and status", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteJSON(w, http.StatusOK, map[string]string{"key": "value"})

		if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
			t.Errorf("Content-Type = %q; want application/json; charset=utf-8", got)
		}
		if w.Code != http.StatusOK {
			t.Errorf("Code = %d; want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("encodes body as JSON", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteJSON(w, http.StatusCreated, map[string]string{"foo": "bar"})

		var got map[string]string
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("body is not valid JSON: %v", err)
		}
		if got["foo"] != "bar" {
			t.Errorf("body[foo] = %q; want bar", got["foo"])
		}
	})
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusBadRequest, "invalid input")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Code = %d; want %d", w.Code, http.StatusBadRequest)
	}
	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if got["error"] != http.StatusText(http.StatusBadRequest) {
		t.Errorf("error = %q; want %q", got["error"], http.StatusText(http.StatusBadRequest))
	}
	if got["message"] != "invalid input" {
		t.Errorf("message = %q; want %q", got["message"], "invalid input")
	}
}

func TestWriteDatasetError(t *testing.T) {
	t.Run("pipeline error is 503 with kind", func(t *testing.T) {
		_, loadErr := pipeline.Load("/definitely/missing.csv", pipeline.Options{})
		w := httptest.NewRecorder()

		WriteDatasetError(w, fmt.Errorf("get: %w", loadErr))

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Code = %d; want %d", w.Code, http.StatusServiceUnavailable)
		}
		var got map[string]any
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("body is not valid JSON: %v", err)
		}
		if got["kind"] != string(pipeline.KindNotFound) {
			t.Errorf("kind = %v; want %q", got["kind"], pipeline.KindNotFound)
		}
	})

	t.Run("other errors are 500", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteDatasetError(w, errors.New("boom"))
		if w.Code != http.StatusInternalServerError {
			t.Errorf("Code = %d; want %d", w.Code, http.StatusInternalServerError)
		}
	})
}

func TestWriteHTML(t *testing.T) {
	t.Run("writes rendered body", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteHTML(w, func(out io.Writer) error {
			_, err := io.WriteString(out, "<p>ok</p>")
			return err
		})

		if w.Code != http.StatusOK {
			t.Errorf("Code = %d; want 200", w.Code)
		}
		if got := w.Header().Get("Content-Type"); got != "text/html; charset=utf-8" {
			t.Errorf("Content-Type = %q", got)
		}
		if w.Body.String() != "<p>ok</p>" {
			t.Errorf("body = %q", w.Body.String())
		}
	})

	t.Run("render failure discards partial output", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteHTML(w, func(out io.Writer) error {
			_, _ = io.WriteString(out, "<p>half")
			return errors.New("template exploded")
		})

		if w.Code != http.StatusInternalServerError {
			t.Errorf("Code = %d; want 500", w.Code)
		}
		var got map[string]any
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("body is not valid JSON: %v", err)
		}
		if got["message"] != "failed to render page" {
			t.Errorf("message = %v", got["message"])
		}
	})
}
