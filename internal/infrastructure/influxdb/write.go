package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/doorwatch/internal/sensor"
)

// MeasurementDoorState is the measurement door readings are written to.
const MeasurementDoorState = "door_state"

// WriteDoorState queues one door reading. Non-blocking; dropped after Close.
func (c *Client) WriteDoorState(r sensor.Reading) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(doorStatePoint(r))
}

func doorStatePoint(r sensor.Reading) *write.Point {
	ts := r.ObservedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	level := 0
	if r.State == sensor.Open {
		level = 1
	}

	return write.NewPoint(
		MeasurementDoorState,
		map[string]string{
			"device_id": r.DeviceID,
			"source":    r.Source,
		},
		map[string]interface{}{
			"open":    r.State == sensor.Open,
			"state":   level,
			"changed": r.Changed,
		},
		ts,
	)
}

// StateWriter writes every reading to InfluxDB. It implements sensor.Observer.
type StateWriter struct {
	client *Client
}

// NewStateWriter creates a StateWriter.
func NewStateWriter(client *Client) *StateWriter {
	return &StateWriter{client: client}
}

// ObserveState implements sensor.Observer.
func (w *StateWriter) ObserveState(_ context.Context, r sensor.Reading) error {
	if !w.client.IsConnected() {
		return ErrNotConnected
	}
	w.client.WriteDoorState(r)
	return nil
}
