package influxdb

import (
	"context"
	"strconv"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/hydroponics-core/internal/hydro"
)

// MeasurementName is the InfluxDB measurement readings are written to.
const MeasurementName = "hydroponic_measurement"

// measurementPoint builds the point for one stored measurement.
//
// Tags are the system id and owner id; fields are whichever readings are
// present. A measurement with no readings yields nil, since InfluxDB
// rejects points without fields.
func measurementPoint(owner hydro.Principal, m hydro.Measurement) *write.Point {
	fields := make(map[string]interface{}, 3)
	if m.PH != nil {
		fields["ph"] = *m.PH
	}
	if m.Temperature != nil {
		fields["temperature"] = *m.Temperature
	}
	if m.TDS != nil {
		fields["tds"] = *m.TDS
	}
	if len(fields) == 0 {
		return nil
	}

	ownerID := m.OwnerID
	if ownerID == "" {
		ownerID = owner.UserID
	}

	return write.NewPoint(
		MeasurementName,
		map[string]string{
			"system_id": strconv.FormatInt(m.SystemID, 10),
			"owner_id":  ownerID,
		},
		fields,
		m.Timestamp,
	)
}

// WriteMeasurement queues m for the next batch. It is a no-op when the
// client is not connected.
func (c *Client) WriteMeasurement(owner hydro.Principal, m hydro.Measurement) {
	if !c.IsConnected() {
		return
	}
	if point := measurementPoint(owner, m); point != nil {
		c.writeAPI.WritePoint(point)
	}
}

// MeasurementRecorded implements hydro.MeasurementSink. Writes are batched
// and asynchronous; failures surface through SetOnError.
func (c *Client) MeasurementRecorded(_ context.Context, owner hydro.Principal, m hydro.Measurement) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.WriteMeasurement(owner, m)
	return nil
}
