package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/doorwatch/internal/infrastructure/config"
	"github.com/nerrad567/doorwatch/internal/sensor"
)

func TestTopics(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		got    func(Topics) string
		want   string
	}{
		{"state", "doorwatch", func(tp Topics) string { return tp.State("bf01") }, "doorwatch/state/bf01"},
		{"refresh", "home/door", func(tp Topics) string { return tp.Refresh("bf01") }, "home/door/command/bf01/refresh"},
		{"status", "doorwatch", func(tp Topics) string { return tp.SystemStatus() }, "doorwatch/system/status"},
		{"default prefix", "", func(tp Topics) string { return tp.State("x") }, "doorwatch/state/x"},
		{"trimmed prefix", "/door/", func(tp Topics) string { return tp.Prefix() }, "door"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.got(NewTopics(tt.prefix)); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidatePublish(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"valid", "doorwatch/state/x", []byte("{}"), 1, nil},
		{"empty topic", "", nil, 0, ErrInvalidTopic},
		{"bad qos", "t", nil, 3, ErrInvalidQoS},
		{"too large", "t", make([]byte, maxPayloadSize+1), 0, ErrPublishFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePublish(tt.topic, tt.payload, tt.qos)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validatePublish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_NotConnected(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	if c.IsConnected() {
		t.Error("IsConnected() = true for unconnected client")
	}
	if err := c.Publish("t", nil, 0, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
	if err := c.Subscribe("t", 0, func(string, []byte) error { return nil }); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	var nilClient *Client
	if err := nilClient.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}

func TestConnect_BrokerRefused(t *testing.T) {
	_, err := Connect(config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "127.0.0.1", Port: 1, ClientID: "doorwatch-test"},
		QoS:    1,
	})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestBuildStatusPayload(t *testing.T) {
	var p statusPayload
	if err := json.Unmarshal(buildStatusPayload("offline", "doorwatch", "graceful_shutdown"), &p); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if p.Status != "offline" || p.ClientID != "doorwatch" || p.Reason != "graceful_shutdown" {
		t.Errorf("payload = %+v", p)
	}
	if _, err := time.Parse(time.RFC3339, p.Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", p.Timestamp, err)
	}
}

type fakePublisher struct {
	topic   string
	payload []byte
	err     error
}

func (f *fakePublisher) PublishRetained(topic string, payload []byte) error {
	f.topic, f.payload = topic, payload
	return f.err
}

func TestStatePublisher(t *testing.T) {
	pub := &fakePublisher{}
	sp := NewStatePublisher(pub, "doorwatch")

	observed := time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC)
	err := sp.ObserveState(context.Background(), sensor.Reading{
		DeviceID:   "bf01",
		State:      sensor.Open,
		Changed:    true,
		Source:     sensor.SourceBroadcast,
		EventID:    "evt-1",
		ObservedAt: observed,
	})
	if err != nil {
		t.Fatalf("ObserveState() error = %v", err)
	}

	if pub.topic != "doorwatch/state/bf01" {
		t.Errorf("topic = %q", pub.topic)
	}
	var got map[string]any
	if err := json.Unmarshal(pub.payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got["state"] != "open" || got["changed"] != true || got["event_id"] != "evt-1" {
		t.Errorf("payload = %v", got)
	}
	if !strings.HasPrefix(got["timestamp"].(string), "2026-03-01T07:30:00") {
		t.Errorf("timestamp = %v", got["timestamp"])
	}

	pub.err = ErrNotConnected
	if err := sp.ObserveState(context.Background(), sensor.Reading{DeviceID: "bf01", State: sensor.Closed}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("ObserveState() error = %v, want ErrNotConnected", err)
	}
}

type fakeRefresher struct {
	ok    bool
	calls atomic.Int32
}

func (f *fakeRefresher) Refresh(ctx context.Context) (sensor.State, bool) {
	f.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return sensor.Unknown, false
	}
	return sensor.Open, f.ok
}

func TestRefreshHandler(t *testing.T) {
	r := &fakeRefresher{ok: true}
	h := refreshHandler(r, time.Second)

	if err := h("doorwatch/command/bf01/refresh", nil); err != nil {
		t.Errorf("handler error = %v", err)
	}

	r.ok = false
	if err := h("doorwatch/command/bf01/refresh", nil); err == nil {
		t.Error("handler error = nil after failed refresh")
	}
	if got := r.calls.Load(); got != 2 {
		t.Errorf("Refresh calls = %d, want 2", got)
	}
}
