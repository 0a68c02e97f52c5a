package pipeline

import (
	"encoding/json"
	"math"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/stat"

	"airquality/internal/modules/airquality/types"
)

// Matrix is a symmetric Pearson correlation matrix. Undefined cells are NaN.
type Matrix struct {
	Fields []types.Field
	Values [][]float64
}

// At returns the coefficient for the pair (a, b), or NaN when either field is absent.
func (m Matrix) At(a, b types.Field) float64 {
	i, j := m.index(a), m.index(b)
	if i < 0 || j < 0 {
		return math.NaN()
	}
	return m.Values[i][j]
}

func (m Matrix) index(f types.Field) int {
	for i, x := range m.Fields {
		if x == f {
			return i
		}
	}
	return -1
}

// MarshalJSON encodes NaN cells as null.
func (m Matrix) MarshalJSON() ([]byte, error) {
	values := make([][]*float64, len(m.Values))
	for i, row := range m.Values {
		values[i] = make([]*float64, len(row))
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			v := v
			values[i][j] = &v
		}
	}
	return json.Marshal(struct {
		Fields []types.Field `json:"fields"`
		Values [][]*float64  `json:"values"`
	}{m.Fields, values})
}

// Correlation computes pairwise Pearson coefficients between the measurement
// columns of df. With fewer than two rows every cell is NaN.
func Correlation(df dataframe.DataFrame, fields ...types.Field) Matrix {
	if len(fields) == 0 {
		fields = types.Measurements
	}
	cols := make([][]float64, len(fields))
	for i, f := range fields {
		cols[i] = df.Col(string(f)).Float()
	}

	m := Matrix{Fields: fields, Values: make([][]float64, len(fields))}
	for i := range fields {
		m.Values[i] = make([]float64, len(fields))
	}
	for i := range fields {
		for j := i; j < len(fields); j++ {
			v := math.NaN()
			if df.Nrow() >= 2 {
				v = stat.Correlation(cols[i], cols[j], nil)
			}
			m.Values[i][j] = v
			m.Values[j][i] = v
		}
	}
	return m
}
