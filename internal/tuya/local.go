package tuya

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"
)

// Local session constants.
const (
	// DefaultLocalPort is the TCP port devices accept local sessions on.
	DefaultLocalPort = 6668

	// defaultIOTimeout applies when the caller's context has no deadline.
	defaultIOTimeout = 5 * time.Second

	// maxReplyFrames bounds how many frames are read looking for the status reply.
	maxReplyFrames = 4

	// DoorContactDPS is the data point carrying the contact state.
	DoorContactDPS = "1"
)

// LocalClient queries the device over an encrypted protocol 3.3 session.
//
// A fresh TCP connection is opened for every read and closed afterwards.
// Safe for concurrent use.
type LocalClient struct {
	deviceID string
	address  string
	key      []byte
	seq      atomic.Uint32
	now      func() time.Time
}

// statusReply is the decrypted body of a DP_QUERY reply.
type statusReply struct {
	DevID string         `json:"devId"`
	DPS   map[string]any `json:"dps"`
}

// NewLocalClient creates a local-session client.
//
// Parameters:
//   - deviceID: Tuya device id
//   - ip: Device address on the LAN
//   - port: TCP port, 0 for DefaultLocalPort
//   - localKey: 16 byte AES key
func NewLocalClient(deviceID, ip string, port int, localKey string) (*LocalClient, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if net.ParseIP(ip) == nil {
		return nil, fmt.Errorf("invalid device address %q", ip)
	}
	if len(localKey) != 16 {
		return nil, fmt.Errorf("local key must be 16 bytes, got %d", len(localKey))
	}
	if port == 0 {
		port = DefaultLocalPort
	}

	return &LocalClient{
		deviceID: deviceID,
		address:  net.JoinHostPort(ip, strconv.Itoa(port)),
		key:      []byte(localKey),
		now:      time.Now,
	}, nil
}

// ReadContact implements Client.
func (c *LocalClient) ReadContact(ctx context.Context) (bool, error) {
	dps, err := c.Status(ctx)
	if err != nil {
		return false, err
	}
	return contactFromDPS(dps)
}

// Status performs one DP_QUERY round trip and returns the raw data points.
func (c *LocalClient) Status(ctx context.Context) (map[string]any, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		if isTimeout(err) {
			return nil, newError(ErrCodeTimeout, "timeout connecting to device", err)
		}
		return nil, newError(ErrCodeConnect, "network error: unable to connect", err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = c.now().Add(defaultIOTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, newError(ErrCodeConnect, "setting connection deadline", err)
	}

	request, err := c.buildQuery()
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(request); err != nil {
		return nil, newError(ErrCodeConnect, "sending status query", err)
	}

	// Some firmware acknowledges with an empty frame before the real reply.
	for i := 0; i < maxReplyFrames; i++ {
		f, err := readFrame(conn)
		if err != nil {
			if isTimeout(err) {
				return nil, newError(ErrCodeTimeout, "timeout waiting for device", err)
			}
			return nil, newError(ErrCodePayload, "reading device reply", err)
		}
		if f.Cmd != cmdDPQuery && f.Cmd != cmdStatus {
			continue
		}

		data := replyData(f.Payload)
		if len(data) == 0 {
			continue
		}
		return c.decodeReply(data)
	}

	return nil, newError(ErrCodePayload, "no status reply from device", nil)
}

// buildQuery encodes an encrypted DP_QUERY frame.
func (c *LocalClient) buildQuery() ([]byte, error) {
	payload, err := json.Marshal(map[string]string{
		"gwId":  c.deviceID,
		"devId": c.deviceID,
		"uid":   c.deviceID,
		"t":     strconv.FormatInt(c.now().Unix(), 10),
	})
	if err != nil {
		return nil, newError(ErrCodeJSON, "encoding status query", err)
	}

	encrypted, err := encryptECB(c.key, payload)
	if err != nil {
		return nil, newError(ErrCodeKeyOrVer, "encrypting status query", err)
	}

	return encodeFrame(c.seq.Add(1), cmdDPQuery, encrypted), nil
}

// decodeReply decrypts and parses a status reply body.
func (c *LocalClient) decodeReply(data []byte) (map[string]any, error) {
	plaintext, err := decryptECB(c.key, data)
	if err != nil {
		// Plaintext replies are device-side error strings.
		if json.Valid(data) || isPrintable(data) {
			return nil, newError(ErrCodePayload, "device rejected query: "+string(data), nil)
		}
		return nil, newError(ErrCodeKeyOrVer, "check device key or version", err)
	}

	var reply statusReply
	if err := json.Unmarshal(plaintext, &reply); err != nil {
		return nil, newError(ErrCodeJSON, "invalid JSON in device reply", err)
	}
	if reply.DPS == nil {
		return nil, unexpected("reply has no dps map")
	}

	return reply.DPS, nil
}

// contactFromDPS maps the door contact data point to open/closed.
func contactFromDPS(dps map[string]any) (bool, error) {
	raw, ok := dps[DoorContactDPS]
	if !ok {
		return false, unexpected("dps %q missing", DoorContactDPS)
	}

	switch v := raw.(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	default:
		return false, unexpected("dps %q has type %T", DoorContactDPS, raw)
	}
}

// isTimeout reports whether err is a deadline or network timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isPrintable reports whether data looks like an ASCII message.
func isPrintable(data []byte) bool {
	for _, b := range data {
		if b < 0x20 || b > 0x7e {
			return false
		}
	}
	return len(data) > 0
}
