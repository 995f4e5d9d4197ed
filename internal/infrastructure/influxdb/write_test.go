package influxdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/hydroponics-core/internal/hydro"
)

type fakeWriter struct {
	points  []*write.Point
	flushed int
}

func (f *fakeWriter) WritePoint(p *write.Point) { f.points = append(f.points, p) }
func (f *fakeWriter) Flush()                    { f.flushed++ }

func ptr(v float64) *float64 { return &v }

func pointTags(p *write.Point) map[string]string {
	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	return tags
}

func pointFields(p *write.Point) map[string]any {
	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	return fields
}

func TestMeasurementPoint(t *testing.T) {
	ts := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	owner := hydro.Principal{UserID: "usr-owner", Username: "alice"}

	tests := []struct {
		name       string
		m          hydro.Measurement
		wantFields map[string]any
		wantOwner  string
	}{
		{
			name:       "all readings",
			m:          hydro.Measurement{SystemID: 3, OwnerID: "usr-owner", PH: ptr(6.2), Temperature: ptr(21.5), TDS: ptr(850), Timestamp: ts},
			wantFields: map[string]any{"ph": 6.2, "temperature": 21.5, "tds": 850.0},
			wantOwner:  "usr-owner",
		},
		{
			name:       "partial readings",
			m:          hydro.Measurement{SystemID: 3, PH: ptr(5.8), Timestamp: ts},
			wantFields: map[string]any{"ph": 5.8},
			wantOwner:  "usr-owner",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := measurementPoint(owner, tt.m)
			if p == nil {
				t.Fatal("measurementPoint() = nil")
			}
			if p.Name() != MeasurementName {
				t.Errorf("Name() = %q, want %q", p.Name(), MeasurementName)
			}
			if !p.Time().Equal(ts) {
				t.Errorf("Time() = %v, want %v", p.Time(), ts)
			}

			tags := pointTags(p)
			if tags["system_id"] != "3" || tags["owner_id"] != tt.wantOwner {
				t.Errorf("tags = %v, want system_id=3 owner_id=%s", tags, tt.wantOwner)
			}

			fields := pointFields(p)
			if len(fields) != len(tt.wantFields) {
				t.Fatalf("fields = %v, want %v", fields, tt.wantFields)
			}
			for k, want := range tt.wantFields {
				if fields[k] != want {
					t.Errorf("field %s = %v, want %v", k, fields[k], want)
				}
			}
		})
	}

	if p := measurementPoint(owner, hydro.Measurement{SystemID: 3, Timestamp: ts}); p != nil {
		t.Errorf("measurementPoint() without readings = %v, want nil", p)
	}
}

func TestMeasurementRecorded_Writes(t *testing.T) {
	w := &fakeWriter{}
	c := &Client{writeAPI: w, connected: true}

	owner := hydro.Principal{UserID: "usr-1", Username: "alice"}
	if err := c.MeasurementRecorded(context.Background(), owner, hydro.Measurement{SystemID: 1, PH: ptr(6.0)}); err != nil {
		t.Fatalf("MeasurementRecorded() error = %v", err)
	}
	// Nothing to write, nothing queued.
	if err := c.MeasurementRecorded(context.Background(), owner, hydro.Measurement{SystemID: 1}); err != nil {
		t.Fatalf("MeasurementRecorded() error = %v", err)
	}

	if len(w.points) != 1 {
		t.Fatalf("points written = %d, want 1", len(w.points))
	}

	c.Flush()
	if w.flushed != 1 {
		t.Errorf("flushed = %d, want 1", w.flushed)
	}
}

func TestMeasurementRecorded_Disconnected(t *testing.T) {
	w := &fakeWriter{}
	c := &Client{writeAPI: w}

	err := c.MeasurementRecorded(context.Background(), hydro.Principal{}, hydro.Measurement{PH: ptr(6.0)})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("MeasurementRecorded() error = %v, want ErrNotConnected", err)
	}
	c.Flush()
	if len(w.points) != 0 || w.flushed != 0 {
		t.Errorf("disconnected client wrote %d points, flushed %d times", len(w.points), w.flushed)
	}
}

func TestClose_NoClient(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
