package controller

import (
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"airquality/internal/modules/airquality/pipeline"
	"airquality/internal/modules/airquality/report"
	"airquality/internal/modules/airquality/types"
	"airquality/internal/modules/airquality/views"
	"airquality/internal/utils"
)

func (c *airQualityControllerImpl) dataset(w http.ResponseWriter) (*pipeline.Dataset, bool) {
	ds, err := c.data.Get()
	if err != nil {
		slog.Error("dataset unavailable", "error", err)
		utils.WriteDatasetError(w, err)
		return nil, false
	}
	return ds, true
}

func (c *airQualityControllerImpl) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	rng, err := parseDateRange(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	fields, err := parseFields(r, types.Pollutants, defaultChartFields)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	ds, ok := c.dataset(w)
	if !ok {
		return
	}

	data := buildDashboard(ds, resolveRange(ds, rng), fields)
	utils.WriteHTML(w, func(out io.Writer) error {
		return views.RenderDashboard(out, &data)
	})
}

func (c *airQualityControllerImpl) handleDailyPartial(w http.ResponseWriter, r *http.Request) {
	rng, err := parseDateRange(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	fields, err := parseFields(r, types.Pollutants, defaultChartFields)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	ds, ok := c.dataset(w)
	if !ok {
		return
	}

	data := buildDaily(ds.FilterDaily(rng), fields)
	utils.WriteHTML(w, func(out io.Writer) error {
		return views.RenderDailyPartial(out, &data)
	})
}

func (c *airQualityControllerImpl) handleCorrelationPartial(w http.ResponseWriter, r *http.Request) {
	rng, err := parseDateRange(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	ds, ok := c.dataset(w)
	if !ok {
		return
	}

	data := buildCorrelation(ds.FilterRecords(rng))
	utils.WriteHTML(w, func(out io.Writer) error {
		return views.RenderCorrelationPartial(out, &data)
	})
}

func (c *airQualityControllerImpl) handlePreviewPartial(w http.ResponseWriter, r *http.Request) {
	rng, err := parseDateRange(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	ds, ok := c.dataset(w)
	if !ok {
		return
	}

	data := buildPreview(ds.FilterRecords(rng))
	utils.WriteHTML(w, func(out io.Writer) error {
		return views.RenderPreviewPartial(out, &data)
	})
}

type summaryResponse struct {
	Source            pipeline.Source `json:"source"`
	Summary           report.Summary  `json:"summary"`
	NOxNO2Correlation *float64        `json:"noxNo2Correlation"`
	Warnings          []string        `json:"warnings"`
}

func (c *airQualityControllerImpl) handleSummary(w http.ResponseWriter, r *http.Request) {
	ds, ok := c.dataset(w)
	if !ok {
		return
	}
	s := report.FromDataset(ds)
	resp := summaryResponse{
		Source:   ds.Source(),
		Summary:  s,
		Warnings: ds.Stats().Warnings(),
	}
	if !math.IsNaN(s.NOxNO2) {
		v := s.NOxNO2
		resp.NOxNO2Correlation = &v
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

type dailyResponse struct {
	From  *time.Time             `json:"from"`
	To    *time.Time             `json:"to"`
	Items []types.DailyAggregate `json:"items"`
}

func (c *airQualityControllerImpl) handleDaily(w http.ResponseWriter, r *http.Request) {
	rng, err := parseDateRange(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	ds, ok := c.dataset(w)
	if !ok {
		return
	}
	utils.WriteJSON(w, http.StatusOK, dailyResponse{
		From:  zeroAsNullTime(rng.From),
		To:    zeroAsNullTime(rng.To),
		Items: ds.FilterDaily(rng),
	})
}

type recordsResponse struct {
	From  *time.Time            `json:"from"`
	To    *time.Time            `json:"to"`
	Limit int                   `json:"limit"`
	Total int                   `json:"total"`
	Items []types.CleanedRecord `json:"items"`
}

func (c *airQualityControllerImpl) handleRecords(w http.ResponseWriter, r *http.Request) {
	rng, err := parseDateRange(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	ds, ok := c.dataset(w)
	if !ok {
		return
	}
	records := ds.FilterRecords(rng)
	utils.WriteJSON(w, http.StatusOK, recordsResponse{
		From:  zeroAsNullTime(rng.From),
		To:    zeroAsNullTime(rng.To),
		Limit: limit,
		Total: len(records),
		Items: pipeline.Head(records, limit),
	})
}

type correlationResponse struct {
	Records int             `json:"records"`
	Matrix  pipeline.Matrix `json:"matrix"`
}

func (c *airQualityControllerImpl) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	rng, err := parseDateRange(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	fields, err := parseFields(r, types.Measurements, types.Measurements)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	ds, ok := c.dataset(w)
	if !ok {
		return
	}
	records := ds.FilterRecords(rng)
	utils.WriteJSON(w, http.StatusOK, correlationResponse{
		Records: len(records),
		Matrix:  pipeline.Correlation(pipeline.RecordsFrame(records), fields...),
	})
}

func zeroAsNullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
