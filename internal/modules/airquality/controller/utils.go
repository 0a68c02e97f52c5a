package controller

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"airquality/internal/modules/airquality/pipeline"
	"airquality/internal/modules/airquality/types"
)

const (
	defaultRecordsLimit = 100
	maxRecordsLimit     = 1000
	previewRows         = 5

	chartWidth   = 600.0
	chartHeight  = 160.0
	chartPadding = 5.0
)

// defaultChartFields is the pollutant selection when the request names none.
var defaultChartFields = []types.Field{types.FieldCO}

// parseDateRange reads the inclusive from/to calendar dates (YYYY-MM-DD).
// A missing bound stays open.
func parseDateRange(r *http.Request) (pipeline.DateRange, error) {
	q := r.URL.Query()
	var rng pipeline.DateRange
	var err error

	if s := strings.TrimSpace(q.Get("from")); s != "" {
		rng.From, err = time.Parse(types.DateLayout, s)
		if err != nil {
			return pipeline.DateRange{}, errors.New("invalid 'from' (expected YYYY-MM-DD)")
		}
	}
	if s := strings.TrimSpace(q.Get("to")); s != "" {
		rng.To, err = time.Parse(types.DateLayout, s)
		if err != nil {
			return pipeline.DateRange{}, errors.New("invalid 'to' (expected YYYY-MM-DD)")
		}
	}
	if !rng.From.IsZero() && !rng.To.IsZero() && rng.From.After(rng.To) {
		return pipeline.DateRange{}, errors.New("'from' must be <= 'to'")
	}
	return rng, nil
}

// parseFields collects repeated "field" parameters and comma separated "fields".
// Unknown names are rejected. The result keeps display order and has no duplicates.
func parseFields(r *http.Request, allowed, def []types.Field) ([]types.Field, error) {
	q := r.URL.Query()
	names := append([]string(nil), q["field"]...)
	for _, s := range q["fields"] {
		names = append(names, strings.Split(s, ",")...)
	}

	seen := make(map[types.Field]bool)
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		f, ok := types.ParseField(name)
		if !ok || !slices.Contains(allowed, f) {
			return nil, fmt.Errorf("unknown field %q", name)
		}
		seen[f] = true
	}
	if len(seen) == 0 {
		return slices.Clone(def), nil
	}

	out := make([]types.Field, 0, len(seen))
	for _, f := range allowed {
		if seen[f] {
			out = append(out, f)
		}
	}
	return out, nil
}

func parseLimit(r *http.Request) (int, error) {
	limit := defaultRecordsLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, errors.New("invalid 'limit' (expected integer)")
		}
		if n <= 0 {
			return 0, errors.New("'limit' must be > 0")
		}
		if n > maxRecordsLimit {
			return 0, fmt.Errorf("'limit' must be <= %d", maxRecordsLimit)
		}
		limit = n
	}
	return limit, nil
}

// resolveRange fills open bounds with the dataset's first and last date so the
// form always shows concrete values.
func resolveRange(ds *pipeline.Dataset, rng pipeline.DateRange) pipeline.DateRange {
	first, last, ok := ds.Span()
	if !ok {
		return rng
	}
	if rng.From.IsZero() {
		rng.From = first
	}
	if rng.To.IsZero() {
		rng.To = last
	}
	return rng
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(types.DateLayout)
}

func formatValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "—"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// correlationClass buckets a coefficient for the heat map colouring.
func correlationClass(v float64) string {
	switch {
	case math.IsNaN(v):
		return "undefined"
	case v >= 0.7:
		return "pos-strong"
	case v >= 0.3:
		return "pos-moderate"
	case v <= -0.7:
		return "neg-strong"
	case v <= -0.3:
		return "neg-moderate"
	default:
		return ""
	}
}

// chartPoints scales one daily series into the chart's viewBox. The y axis is
// inverted so larger values sit higher.
func chartPoints(daily []types.DailyAggregate, f types.Field) (points string, lo, hi float64) {
	if len(daily) == 0 {
		return "", math.NaN(), math.NaN()
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, d := range daily {
		v := d.Value(f)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	plotW := chartWidth - 2*chartPadding
	plotH := chartHeight - 2*chartPadding
	parts := make([]string, len(daily))
	for i, d := range daily {
		x := chartPadding
		if len(daily) > 1 {
			x += plotW * float64(i) / float64(len(daily)-1)
		}
		y := chartPadding + plotH/2
		if hi > lo {
			y = chartPadding + plotH*(1-(d.Value(f)-lo)/(hi-lo))
		}
		parts[i] = strconv.FormatFloat(x, 'f', 1, 64) + "," + strconv.FormatFloat(y, 'f', 1, 64)
	}
	return strings.Join(parts, " "), lo, hi
}
