package influx

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geomemo/geomemo/internal/proximity"
	"github.com/geomemo/geomemo/pkg/core"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	points []*influxdb2_write.Point
	err    error
}

func (w *fakeWriter) WritePoint(ctx context.Context, p *influxdb2_write.Point) error {
	if w.err != nil {
		return w.err
	}
	w.points = append(w.points, p)
	return nil
}

func tagMap(p *influxdb2_write.Point) map[string]string {
	out := map[string]string{}
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func fieldMap(p *influxdb2_write.Point) map[string]interface{} {
	out := map[string]interface{}{}
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func TestTransitionPoint(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e := proximity.Event{Kind: proximity.Exit, MarkerID: "A", DistanceKm: 0.25, Removed: true}
	p := TransitionPoint(e, core.Position{Latitude: 1.5, Longitude: 2.5, Time: ts}, time.Time{})

	assert.Equal(t, Measurement, p.Name())
	assert.Equal(t, map[string]string{"kind": "exit", "marker": "A", "removed": "true"}, tagMap(p))
	assert.Equal(t, map[string]interface{}{"distance_m": 250.0, "lat": 1.5, "lon": 2.5}, fieldMap(p))
	assert.True(t, ts.Equal(p.Time()))
}

func TestTransitionPoint_FallbackTime(t *testing.T) {
	fallback := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := TransitionPoint(proximity.Event{Kind: proximity.Enter, MarkerID: "B"}, core.Position{}, fallback)
	assert.True(t, fallback.Equal(p.Time()))
	assert.NotContains(t, tagMap(p), "removed")
}

func TestRecorder_RecordTransition(t *testing.T) {
	w := &fakeWriter{}
	r := NewRecorder(w, zerolog.Nop())
	r.RecordTransition(context.Background(), proximity.Event{Kind: proximity.Enter, MarkerID: "A"}, core.Position{})
	require.Len(t, w.points, 1)
	assert.Equal(t, "enter", tagMap(w.points[0])["kind"])
}

func TestRecorder_WriteErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	w := &fakeWriter{err: errors.New("bucket not found")}
	r := NewRecorder(w, zerolog.New(&buf))

	r.RecordTransition(context.Background(), proximity.Event{Kind: proximity.Enter, MarkerID: "A"}, core.Position{})
	assert.Contains(t, buf.String(), "bucket not found")
	assert.Contains(t, buf.String(), `"marker":"A"`)
}
