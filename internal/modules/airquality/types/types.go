package types

import "time"

// Field is the canonical short name of a column exposed to presentation code.
type Field string

const (
	FieldTimestamp   Field = "timestamp"
	FieldDate        Field = "date"
	FieldCO          Field = "co"
	FieldBenzene     Field = "c6h6"
	FieldNOx         Field = "nox"
	FieldNO2         Field = "no2"
	FieldTemperature Field = "temperature"
	FieldHumidity    Field = "humidity"
)

// Measurements lists the six numeric fields in display order.
var Measurements = []Field{
	FieldCO,
	FieldBenzene,
	FieldNOx,
	FieldNO2,
	FieldTemperature,
	FieldHumidity,
}

// Pollutants are the fields the source instrument reports with the -200 sentinel.
var Pollutants = []Field{FieldCO, FieldBenzene, FieldNOx, FieldNO2}

// Unit returns the display unit of a measurement field.
func (f Field) Unit() string {
	switch f {
	case FieldCO:
		return "mg/m³"
	case FieldBenzene:
		return "µg/m³"
	case FieldNOx, FieldNO2:
		return "ppb"
	case FieldTemperature:
		return "°C"
	case FieldHumidity:
		return "%"
	default:
		return ""
	}
}

// Label returns a human readable name for the field.
func (f Field) Label() string {
	switch f {
	case FieldCO:
		return "CO"
	case FieldBenzene:
		return "C6H6"
	case FieldNOx:
		return "NOx"
	case FieldNO2:
		return "NO2"
	case FieldTemperature:
		return "Temperature"
	case FieldHumidity:
		return "Humidity"
	case FieldTimestamp:
		return "Timestamp"
	case FieldDate:
		return "Date"
	default:
		return string(f)
	}
}

// ParseField resolves a canonical field name. Only measurement fields are accepted.
func ParseField(s string) (Field, bool) {
	for _, f := range Measurements {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// RawRecord is one row as read from the source CSV. A nil measurement is missing.
type RawRecord struct {
	Line        int
	Date        string
	Time        string
	CO          *float64
	Benzene     *float64
	NOx         *float64
	NO2         *float64
	Temperature *float64
	Humidity    *float64
}

// Value returns the raw measurement for f, or nil when absent.
func (r *RawRecord) Value(f Field) *float64 {
	switch f {
	case FieldCO:
		return r.CO
	case FieldBenzene:
		return r.Benzene
	case FieldNOx:
		return r.NOx
	case FieldNO2:
		return r.NO2
	case FieldTemperature:
		return r.Temperature
	case FieldHumidity:
		return r.Humidity
	default:
		return nil
	}
}

// SetValue replaces the raw measurement for f.
func (r *RawRecord) SetValue(f Field, v *float64) {
	switch f {
	case FieldCO:
		r.CO = v
	case FieldBenzene:
		r.Benzene = v
	case FieldNOx:
		r.NOx = v
	case FieldNO2:
		r.NO2 = v
	case FieldTemperature:
		r.Temperature = v
	case FieldHumidity:
		r.Humidity = v
	}
}

// CleanedRecord is a row that passed timestamp parsing and the completeness filter.
type CleanedRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	CO          float64   `json:"co"`
	Benzene     float64   `json:"c6h6"`
	NOx         float64   `json:"nox"`
	NO2         float64   `json:"no2"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
}

// Value returns the measurement for f.
func (r CleanedRecord) Value(f Field) float64 {
	switch f {
	case FieldCO:
		return r.CO
	case FieldBenzene:
		return r.Benzene
	case FieldNOx:
		return r.NOx
	case FieldNO2:
		return r.NO2
	case FieldTemperature:
		return r.Temperature
	case FieldHumidity:
		return r.Humidity
	default:
		return 0
	}
}

// Day returns the calendar date of the record at midnight UTC.
func (r CleanedRecord) Day() time.Time {
	return Day(r.Timestamp)
}

// DailyAggregate holds per-day arithmetic means of every measurement.
type DailyAggregate struct {
	Date        time.Time `json:"date"`
	CO          float64   `json:"co"`
	Benzene     float64   `json:"c6h6"`
	NOx         float64   `json:"nox"`
	NO2         float64   `json:"no2"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Count       int       `json:"count"`
}

// Value returns the daily mean for f.
func (d DailyAggregate) Value(f Field) float64 {
	switch f {
	case FieldCO:
		return d.CO
	case FieldBenzene:
		return d.Benzene
	case FieldNOx:
		return d.NOx
	case FieldNO2:
		return d.NO2
	case FieldTemperature:
		return d.Temperature
	case FieldHumidity:
		return d.Humidity
	default:
		return 0
	}
}

// DateString formats the aggregate's date as YYYY-MM-DD.
func (d DailyAggregate) DateString() string {
	return d.Date.Format(DateLayout)
}

// DateLayout is the layout used for calendar dates in every output.
const DateLayout = "2006-01-02"

// Day truncates t to its calendar date in t's location, returned as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
