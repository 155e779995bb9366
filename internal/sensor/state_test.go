package sensor

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		str   string
		label string
	}{
		{Unknown, "unknown", "UNKNOWN"},
		{Closed, "closed", "CLOSED"},
		{Open, "open", "OPEN"},
		{State(42), "unknown", "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			if got := tt.state.String(); got != tt.str {
				t.Errorf("String() = %q, want %q", got, tt.str)
			}
			if got := tt.state.Label(); got != tt.label {
				t.Errorf("Label() = %q, want %q", got, tt.label)
			}
		})
	}
}

func TestStateFromContact(t *testing.T) {
	if got := StateFromContact(true); got != Open {
		t.Errorf("StateFromContact(true) = %v, want open", got)
	}
	if got := StateFromContact(false); got != Closed {
		t.Errorf("StateFromContact(false) = %v, want closed", got)
	}
}

func TestState_JSON(t *testing.T) {
	data, err := json.Marshal(Snapshot{State: Open})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.State != "open" {
		t.Errorf("state = %q, want open", decoded.State)
	}

	var s State
	if err := s.UnmarshalText([]byte("closed")); err != nil || s != Closed {
		t.Errorf("UnmarshalText(closed) = %v, %v", s, err)
	}
	if err := s.UnmarshalText([]byte("ajar")); err == nil {
		t.Error("UnmarshalText(ajar) error = nil, want error")
	}
}

func TestStatusCache_InitiallyUnknown(t *testing.T) {
	var zero StatusCache
	if got := zero.Get(); got != Unknown {
		t.Errorf("zero cache Get() = %v, want unknown", got)
	}

	c := NewStatusCache()
	snap := c.Snapshot()
	if snap.State != Unknown || !snap.UpdatedAt.IsZero() {
		t.Errorf("new cache Snapshot() = %+v, want unknown with zero time", snap)
	}
}

func TestStatusCache_SetGet(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	c := NewStatusCache()
	c.now = func() time.Time { return now }

	c.Set(Open)
	if got := c.Get(); got != Open {
		t.Errorf("Get() = %v, want open", got)
	}
	if got := c.Snapshot().UpdatedAt; !got.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", got, now)
	}

	c.Set(Closed)
	if got := c.Get(); got != Closed {
		t.Errorf("Get() = %v, want closed", got)
	}
}

func TestStatusCache_ConcurrentAccess(t *testing.T) {
	c := NewStatusCache()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Set(StateFromContact((i+j)%2 == 0))
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if s := c.Get(); s != Unknown && s != Open && s != Closed {
					t.Errorf("Get() = %d, not a valid state", s)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := c.Get(); got != Open && got != Closed {
		t.Errorf("final Get() = %v, want open or closed", got)
	}
}
