package sensor

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

var loopback = net.IPv4(127, 0, 0, 1)

func newTestListener(t *testing.T, deviceIP net.IP) *Listener {
	t.Helper()
	l, err := NewListener("127.0.0.1:0", deviceIP, nil)
	if err != nil {
		t.Fatalf("NewListener() error = %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

// sendDatagram sends payload to addr from a socket bound to fromIP.
func sendDatagram(t *testing.T, fromIP string, addr net.Addr, payload string) {
	t.Helper()
	conn, err := net.ListenPacket("udp4", fromIP+":0")
	if err != nil {
		t.Fatalf("sender bind %s: %v", fromIP, err)
	}
	defer conn.Close()
	if _, err := conn.WriteTo([]byte(payload), addr); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
}

func TestListener_DeliversDeviceDatagrams(t *testing.T) {
	l := newTestListener(t, loopback)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event, 4)
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx, func(ev Event) { events <- ev }) }()

	sendDatagram(t, "127.0.0.1", l.Addr(), `{"gwId":"bf01","ip":"127.0.0.1"}`)

	select {
	case ev := <-events:
		if !ev.Source.Equal(loopback) {
			t.Errorf("Source = %v, want 127.0.0.1", ev.Source)
		}
		if string(ev.Payload) != `{"gwId":"bf01","ip":"127.0.0.1"}` {
			t.Errorf("Payload = %q", ev.Payload)
		}
		if ev.ID == "" || ev.ReceivedAt.IsZero() {
			t.Errorf("event missing id or timestamp: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() after cancel = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestListener_IgnoresOtherHosts(t *testing.T) {
	l := newTestListener(t, net.IPv4(10, 20, 30, 40))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event, 4)
	go func() { _ = l.Run(ctx, func(ev Event) { events <- ev }) }()

	sendDatagram(t, "127.0.0.1", l.Addr(), "hello")

	select {
	case ev := <-events:
		t.Fatalf("unexpected event from %v", ev.Source)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestListener_CloseStopsRun(t *testing.T) {
	l := newTestListener(t, loopback)

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(context.Background(), func(Event) {}) }()

	time.Sleep(50 * time.Millisecond)
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() after Close = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after Close")
	}
}

func TestNewListener_BindConflict(t *testing.T) {
	first := newTestListener(t, loopback)

	_, err := NewListener(first.Addr().String(), loopback, nil)
	if !errors.Is(err, ErrSocketBind) {
		t.Errorf("second NewListener() error = %v, want ErrSocketBind", err)
	}
}

func TestNewListener_RequiresDevice(t *testing.T) {
	if _, err := NewListener("127.0.0.1:0", nil, nil); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("NewListener(nil ip) error = %v, want ErrInvalidOptions", err)
	}
}
