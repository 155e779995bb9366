package tuya

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"
)

const testDeviceID = "bf0123456789abcdef"

// fakeDevice serves one protocol 3.3 session per connection.
// reply builds the frames sent back for a decoded query.
type fakeDevice struct {
	listener net.Listener
	reply    func(query map[string]string) [][]byte
	queries  chan map[string]string
}

func startFakeDevice(t *testing.T, reply func(query map[string]string) [][]byte) *fakeDevice {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	d := &fakeDevice{listener: ln, reply: reply, queries: make(chan map[string]string, 8)}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go d.serve(conn)
		}
	}()

	return d
}

func (d *fakeDevice) serve(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))

	f, err := readFrame(conn)
	if err != nil {
		return
	}
	plaintext, err := decryptECB(testKey, f.Payload)
	if err != nil {
		return
	}
	var query map[string]string
	if err := json.Unmarshal(plaintext, &query); err != nil {
		return
	}
	d.queries <- query

	for _, out := range d.reply(query) {
		if _, err := conn.Write(out); err != nil {
			return
		}
	}
}

func (d *fakeDevice) client(t *testing.T) *LocalClient {
	t.Helper()
	addr := d.listener.Addr().(*net.TCPAddr)
	c, err := NewLocalClient(testDeviceID, "127.0.0.1", addr.Port, string(testKey))
	if err != nil {
		t.Fatalf("NewLocalClient() error = %v", err)
	}
	return c
}

// encryptedReply builds a device reply frame with a return code.
func encryptedReply(t *testing.T, cmd uint32, body string) []byte {
	t.Helper()
	enc, err := encryptECB(testKey, []byte(body))
	if err != nil {
		t.Fatalf("encryptECB: %v", err)
	}
	return encodeFrame(1, cmd, append([]byte{0, 0, 0, 0}, enc...))
}

func TestLocalClient_ReadContact(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantOpen bool
	}{
		{"closed", `{"devId":"bf0123456789abcdef","dps":{"1":false}}`, false},
		{"open", `{"devId":"bf0123456789abcdef","dps":{"1":true,"3":100}}`, true},
		{"numeric open", `{"dps":{"1":1}}`, true},
		{"numeric closed", `{"dps":{"1":0}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := startFakeDevice(t, func(map[string]string) [][]byte {
				return [][]byte{encryptedReply(t, cmdDPQuery, tt.body)}
			})

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			open, err := dev.client(t).ReadContact(ctx)
			if err != nil {
				t.Fatalf("ReadContact() error = %v", err)
			}
			if open != tt.wantOpen {
				t.Errorf("ReadContact() = %v, want %v", open, tt.wantOpen)
			}

			query := <-dev.queries
			if query["devId"] != testDeviceID || query["gwId"] != testDeviceID {
				t.Errorf("query ids = %v, want %s", query, testDeviceID)
			}
			if _, err := strconv.ParseInt(query["t"], 10, 64); err != nil {
				t.Errorf("query t = %q, want unix timestamp", query["t"])
			}
		})
	}
}

func TestLocalClient_SkipsEmptyAck(t *testing.T) {
	dev := startFakeDevice(t, func(map[string]string) [][]byte {
		return [][]byte{
			encodeFrame(1, cmdDPQuery, []byte{0, 0, 0, 0}),
			encryptedReply(t, cmdStatus, `{"dps":{"1":true}}`),
		}
	})

	open, err := dev.client(t).ReadContact(context.Background())
	if err != nil {
		t.Fatalf("ReadContact() error = %v", err)
	}
	if !open {
		t.Error("ReadContact() = false, want true")
	}
}

func TestLocalClient_Failures(t *testing.T) {
	tests := []struct {
		name       string
		reply      func(t *testing.T) [][]byte
		wantCode   int
		wantStruct bool
	}{
		{
			name: "missing contact dps",
			reply: func(t *testing.T) [][]byte {
				return [][]byte{encryptedReply(t, cmdDPQuery, `{"dps":{"3":100}}`)}
			},
			wantStruct: true,
		},
		{
			name: "no dps map",
			reply: func(t *testing.T) [][]byte {
				return [][]byte{encryptedReply(t, cmdDPQuery, `{"devId":"x"}`)}
			},
			wantStruct: true,
		},
		{
			name: "invalid json",
			reply: func(t *testing.T) [][]byte {
				return [][]byte{encryptedReply(t, cmdDPQuery, `not json`)}
			},
			wantCode: ErrCodeJSON,
		},
		{
			name: "plaintext device error",
			reply: func(*testing.T) [][]byte {
				return [][]byte{encodeFrame(1, cmdDPQuery, append([]byte{0, 0, 0, 0}, "json obj data unvalid"...))}
			},
			wantCode: ErrCodePayload,
		},
		{
			name: "connection closed without reply",
			reply: func(*testing.T) [][]byte {
				return nil
			},
			wantCode: ErrCodePayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := startFakeDevice(t, func(map[string]string) [][]byte { return tt.reply(t) })

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			_, err := dev.client(t).ReadContact(ctx)
			if err == nil {
				t.Fatal("ReadContact() error = nil, want error")
			}

			if tt.wantStruct {
				if !errors.Is(err, ErrUnexpectedResponse) {
					t.Errorf("error = %v, want ErrUnexpectedResponse", err)
				}
				return
			}

			var tErr *Error
			if !errors.As(err, &tErr) {
				t.Fatalf("error = %T %v, want *Error", err, err)
			}
			if tErr.Code != tt.wantCode {
				t.Errorf("error code = %d, want %d", tErr.Code, tt.wantCode)
			}
		})
	}
}

func TestLocalClient_ConnectFailure(t *testing.T) {
	// Reserve a port, then close it so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	c, err := NewLocalClient(testDeviceID, "127.0.0.1", port, string(testKey))
	if err != nil {
		t.Fatalf("NewLocalClient() error = %v", err)
	}

	_, err = c.ReadContact(context.Background())
	var tErr *Error
	if !errors.As(err, &tErr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if tErr.Code != ErrCodeConnect {
		t.Errorf("error code = %d, want %d", tErr.Code, ErrCodeConnect)
	}
}

func TestNewLocalClient_Validation(t *testing.T) {
	tests := []struct {
		name     string
		deviceID string
		ip       string
		key      string
	}{
		{"missing id", "", "10.0.0.5", string(testKey)},
		{"bad ip", testDeviceID, "nope", string(testKey)},
		{"short key", testDeviceID, "10.0.0.5", "short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLocalClient(tt.deviceID, tt.ip, 0, tt.key); err == nil {
				t.Error("NewLocalClient() error = nil, want error")
			}
		})
	}
}

func TestNewClient_SelectsTransport(t *testing.T) {
	local, err := NewClient(Credentials{DeviceID: testDeviceID, Address: "10.0.0.5", LocalKey: string(testKey)})
	if err != nil {
		t.Fatalf("NewClient(local) error = %v", err)
	}
	if _, ok := local.(*LocalClient); !ok {
		t.Errorf("NewClient(local) = %T, want *LocalClient", local)
	}

	cloud, err := NewClient(Credentials{DeviceID: testDeviceID, APIKey: "k", APISecret: "s", Region: "eu"})
	if err != nil {
		t.Fatalf("NewClient(cloud) error = %v", err)
	}
	if _, ok := cloud.(*CloudClient); !ok {
		t.Errorf("NewClient(cloud) = %T, want *CloudClient", cloud)
	}

	if _, err := NewClient(Credentials{DeviceID: testDeviceID}); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("NewClient(none) error = %v, want ErrNoCredentials", err)
	}
}
