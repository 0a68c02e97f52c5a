package export

import (
	"context"
	"fmt"
	"path/filepath"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"airquality/internal/modules/airquality/types"
)

// InfluxMeasurement is the measurement name of exported points.
const InfluxMeasurement = "air_quality_daily"

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxSink writes one point per day, stamped at midnight UTC, so repeated
// exports overwrite rather than duplicate.
type InfluxSink struct {
	client influxdb2.Client
	writer pointWriter
}

func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	client := influxdb2.NewClient(url, token)
	return &InfluxSink{
		client: client,
		writer: client.WriteAPIBlocking(org, bucket),
	}
}

func (s *InfluxSink) Name() string { return "influx" }

func (s *InfluxSink) Write(ctx context.Context, b Batch) error {
	if len(b.Daily) == 0 {
		return nil
	}
	if err := s.writer.WritePoint(ctx, Points(b)...); err != nil {
		return fmt.Errorf("write points: %w", err)
	}
	return nil
}

func (s *InfluxSink) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

// Points converts the batch to line-protocol points.
func Points(b Batch) []*write.Point {
	tags := map[string]string{"source": filepath.Base(b.Source.Path)}
	out := make([]*write.Point, 0, len(b.Daily))
	for _, d := range b.Daily {
		fields := make(map[string]interface{}, len(types.Measurements)+1)
		for _, f := range types.Measurements {
			fields[string(f)] = d.Value(f)
		}
		fields["count"] = d.Count
		out = append(out, influxdb2.NewPoint(InfluxMeasurement, tags, fields, d.Date))
	}
	return out
}
