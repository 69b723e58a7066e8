package telemetry

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/GeVanCo/pi4j-v2/digital"
)

// RecordState writes one transition into the digital_state measurement,
// tagged by instance. The point is buffered; it reaches the server on the
// next batch flush.
func (e *Exporter) RecordState(instanceID string, state digital.State, at time.Time) {
	if !e.IsConnected() {
		return
	}

	e.writes.WritePoint(write.NewPoint(
		"digital_state",
		map[string]string{"instance_id": instanceID},
		map[string]any{
			"value": int64(state.Value()),
			"state": state.String(),
		},
		at,
	))
}

// WritePoint records a measurement outside the digital_state schema, e.g.
// pulse durations or provider health counters. Tags index the point and
// should stay low-cardinality; fields carry the data.
func (e *Exporter) WritePoint(measurement string, tags map[string]string, fields map[string]any, at time.Time) {
	if !e.IsConnected() {
		return
	}

	e.writes.WritePoint(write.NewPoint(measurement, tags, fields, at))
}
