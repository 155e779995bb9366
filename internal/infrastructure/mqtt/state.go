package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/doorwatch/internal/sensor"
)

// Publisher is the subset of Client used by StatePublisher.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
}

// StatePayload is the retained JSON published on the state topic.
type StatePayload struct {
	DeviceID  string       `json:"device_id"`
	State     sensor.State `json:"state"`
	Changed   bool         `json:"changed"`
	Source    string       `json:"source"`
	EventID   string       `json:"event_id,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// StatePublisher publishes every reading to the retained state topic.
// It implements sensor.Observer.
type StatePublisher struct {
	pub    Publisher
	topics Topics
}

// NewStatePublisher creates a publisher for topics under prefix.
func NewStatePublisher(pub Publisher, prefix string) *StatePublisher {
	return &StatePublisher{pub: pub, topics: NewTopics(prefix)}
}

// ObserveState implements sensor.Observer.
func (p *StatePublisher) ObserveState(_ context.Context, r sensor.Reading) error {
	payload, err := json.Marshal(StatePayload{
		DeviceID:  r.DeviceID,
		State:     r.State,
		Changed:   r.Changed,
		Source:    r.Source,
		EventID:   r.EventID,
		Timestamp: r.ObservedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding state payload: %w", err)
	}
	return p.pub.PublishRetained(p.topics.State(r.DeviceID), payload)
}

// Refresher triggers an immediate contact read. *sensor.Monitor satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) (sensor.State, bool)
}

// HandleRefreshCommands subscribes to the device's refresh command topic.
// Any message on it triggers one read bounded by timeout; the resulting state
// reaches the broker through the StatePublisher like any other reading.
func HandleRefreshCommands(c *Client, deviceID string, r Refresher, timeout time.Duration) error {
	return c.Subscribe(c.Topics().Refresh(deviceID), c.qos(), refreshHandler(r, timeout))
}

func refreshHandler(r Refresher, timeout time.Duration) MessageHandler {
	return func(topic string, _ []byte) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if _, ok := r.Refresh(ctx); !ok {
			return fmt.Errorf("refresh requested on %s failed", topic)
		}
		return nil
	}
}
