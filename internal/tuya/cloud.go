package tuya

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Cloud API constants.
const (
	// DoorContactCode is the status code of the contact data point in the cloud API.
	DoorContactCode = "doorcontact_state"

	// signMethod is the only signature scheme the OpenAPI accepts for these calls.
	signMethod = "HMAC-SHA256"

	// tokenRefreshMargin renews the access token slightly before it expires.
	tokenRefreshMargin = time.Minute

	// defaultHTTPTimeout bounds requests when the caller's context has no deadline.
	defaultHTTPTimeout = 10 * time.Second

	// maxResponseSize caps cloud response bodies.
	maxResponseSize = 1 << 20
)

// emptyBodyHash is the SHA-256 of an empty request body.
var emptyBodyHash = hex.EncodeToString(sha256.New().Sum(nil))

// regionHosts maps a region to its OpenAPI endpoint.
var regionHosts = map[string]string{
	"us": "https://openapi.tuyaus.com",
	"eu": "https://openapi.tuyaeu.com",
	"cn": "https://openapi.tuyacn.com",
	"in": "https://openapi.tuyain.com",
}

// CloudOptions configures a CloudClient.
type CloudOptions struct {
	DeviceID  string
	APIKey    string
	APISecret string
	Region    string

	// BaseURL overrides the region host.
	BaseURL string

	// HTTPClient defaults to a client with a 10 second timeout.
	HTTPClient *http.Client
}

// CloudClient reads device status through the Tuya cloud relay.
//
// It authenticates lazily on the first read and reuses the access token
// until it expires. Safe for concurrent use.
type CloudClient struct {
	deviceID  string
	apiKey    string
	apiSecret string
	baseURL   string
	http      *http.Client
	now       func() time.Time

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// apiResponse is the envelope every OpenAPI call returns.
type apiResponse struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Result  json.RawMessage `json:"result"`
}

// tokenResult is the result of GET /v1.0/token.
type tokenResult struct {
	AccessToken string `json:"access_token"`
	ExpireTime  int64  `json:"expire_time"`
}

// StatusEntry is one data point from GET /v1.0/devices/{id}/status.
type StatusEntry struct {
	Code  string `json:"code"`
	Value any    `json:"value"`
}

// NewCloudClient creates a cloud relay client.
func NewCloudClient(opts CloudOptions) (*CloudClient, error) {
	if opts.DeviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if opts.APIKey == "" || opts.APISecret == "" {
		return nil, fmt.Errorf("cloud api key and secret are required")
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		host, ok := regionHosts[strings.ToLower(opts.Region)]
		if !ok {
			return nil, fmt.Errorf("unsupported cloud region %q", opts.Region)
		}
		baseURL = host
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &CloudClient{
		deviceID:  opts.DeviceID,
		apiKey:    opts.APIKey,
		apiSecret: opts.APISecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      httpClient,
		now:       time.Now,
	}, nil
}

// ReadContact implements Client.
//
// The first entry of the status list must be the door contact data point
// with a boolean value; anything else is reported as ErrUnexpectedResponse.
func (c *CloudClient) ReadContact(ctx context.Context) (bool, error) {
	entries, err := c.Status(ctx)
	if err != nil {
		return false, err
	}

	if len(entries) == 0 {
		return false, unexpected("empty status list")
	}
	first := entries[0]
	if first.Code != DoorContactCode {
		return false, unexpected("first status code is %q, want %q", first.Code, DoorContactCode)
	}
	open, ok := first.Value.(bool)
	if !ok {
		return false, unexpected("%s value has type %T", DoorContactCode, first.Value)
	}

	return open, nil
}

// Status returns the device status list from the cloud.
func (c *CloudClient) Status(ctx context.Context) ([]StatusEntry, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	result, err := c.get(ctx, "/v1.0/devices/"+url.PathEscape(c.deviceID)+"/status", token)
	if err != nil {
		return nil, err
	}

	var entries []StatusEntry
	if err := json.Unmarshal(result, &entries); err != nil {
		return nil, unexpected("status result is not a list: %v", err)
	}

	return entries, nil
}

// token returns a valid access token, authenticating when needed.
func (c *CloudClient) token(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	result, err := c.get(ctx, "/v1.0/token?grant_type=1", "")
	if err != nil {
		return "", err
	}

	var tok tokenResult
	if err := json.Unmarshal(result, &tok); err != nil || tok.AccessToken == "" {
		return "", newError(ErrCodeCloudToken, "cloud token response has no access_token", err)
	}

	lifetime := time.Duration(tok.ExpireTime) * time.Second
	if lifetime > tokenRefreshMargin {
		lifetime -= tokenRefreshMargin
	}
	c.accessToken = tok.AccessToken
	c.tokenExpiry = c.now().Add(lifetime)

	return c.accessToken, nil
}

// invalidateToken forces re-authentication on the next call.
func (c *CloudClient) invalidateToken() {
	c.tokenMu.Lock()
	c.accessToken = ""
	c.tokenMu.Unlock()
}

// get issues a signed GET and returns the envelope's result on success.
func (c *CloudClient) get(ctx context.Context, pathAndQuery, accessToken string) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultHTTPTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return nil, newError(ErrCodeCloud, "building cloud request", err)
	}

	t := strconv.FormatInt(c.now().UnixMilli(), 10)
	req.Header.Set("client_id", c.apiKey)
	req.Header.Set("t", t)
	req.Header.Set("sign_method", signMethod)
	req.Header.Set("sign", c.sign(http.MethodGet, pathAndQuery, accessToken, t))
	if accessToken != "" {
		req.Header.Set("access_token", accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, newError(ErrCodeTimeout, "timeout contacting cloud", err)
		}
		return nil, newError(ErrCodeCloud, "contacting cloud", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, newError(ErrCodeCloudResp, "reading cloud response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newError(ErrCodeCloudResp, fmt.Sprintf("cloud returned HTTP %d", resp.StatusCode), nil)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, newError(ErrCodeJSON, "invalid JSON in cloud response", err)
	}
	if !envelope.Success {
		if accessToken != "" && isTokenError(envelope.Code) {
			c.invalidateToken()
		}
		return nil, newError(envelope.Code, envelope.Msg, nil)
	}
	if len(envelope.Result) == 0 {
		return nil, unexpected("cloud response has no result")
	}

	return envelope.Result, nil
}

// sign computes the OpenAPI request signature.
//
// stringToSign = METHOD \n SHA256(body) \n headers \n path?query
// sign = HMAC-SHA256(secret, client_id + access_token + t + stringToSign)
func (c *CloudClient) sign(method, pathAndQuery, accessToken, t string) string {
	stringToSign := method + "\n" + emptyBodyHash + "\n\n" + pathAndQuery

	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(c.apiKey + accessToken + t + stringToSign))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

// isTokenError reports cloud codes meaning the access token is no longer valid.
func isTokenError(code int) bool {
	return code == 1010 || code == 1011
}
