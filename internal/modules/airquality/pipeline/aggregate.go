package pipeline

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"airquality/internal/modules/airquality/types"
)

type dayKey struct {
	year  int
	month time.Month
	day   int
}

type dayBucket struct {
	date   time.Time
	values map[types.Field][]float64
}

// Daily groups records by calendar date and averages every measurement.
// The result is ordered by ascending date; an empty input gives an empty result.
func Daily(records []types.CleanedRecord) []types.DailyAggregate {
	buckets := make(map[dayKey]*dayBucket)
	for _, r := range records {
		y, m, d := r.Timestamp.Date()
		k := dayKey{y, m, d}
		b, ok := buckets[k]
		if !ok {
			b = &dayBucket{
				date:   time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
				values: make(map[types.Field][]float64, len(types.Measurements)),
			}
			buckets[k] = b
		}
		for _, f := range types.Measurements {
			b.values[f] = append(b.values[f], r.Value(f))
		}
	}

	out := make([]types.DailyAggregate, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, types.DailyAggregate{
			Date:        b.date,
			CO:          stat.Mean(b.values[types.FieldCO], nil),
			Benzene:     stat.Mean(b.values[types.FieldBenzene], nil),
			NOx:         stat.Mean(b.values[types.FieldNOx], nil),
			NO2:         stat.Mean(b.values[types.FieldNO2], nil),
			Temperature: stat.Mean(b.values[types.FieldTemperature], nil),
			Humidity:    stat.Mean(b.values[types.FieldHumidity], nil),
			Count:       len(b.values[types.FieldCO]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
