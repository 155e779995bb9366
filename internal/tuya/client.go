package tuya

import (
	"context"
)

// Client reads the current door contact state.
//
// open is true when the contact is broken (door open) and false when the
// contact is made (door closed).
type Client interface {
	ReadContact(ctx context.Context) (open bool, err error)
}

// Credentials holds everything needed to reach the device.
// It is immutable once handed to NewClient.
type Credentials struct {
	// DeviceID is the Tuya device id.
	DeviceID string

	// Address is the device IP on the local network.
	Address string

	// Port is the local session TCP port. Zero means DefaultLocalPort.
	Port int

	// LocalKey selects the local transport when set.
	LocalKey string

	// APIKey, APISecret and Region select the cloud transport when LocalKey is empty.
	APIKey    string
	APISecret string
	Region    string

	// BaseURL overrides the region host for the cloud transport.
	BaseURL string
}

// NewClient returns the transport matching the credentials.
//
// A local key always wins. Without one, cloud API key and secret are
// required; otherwise ErrNoCredentials is returned.
func NewClient(creds Credentials) (Client, error) {
	switch {
	case creds.LocalKey != "":
		local, err := NewLocalClient(creds.DeviceID, creds.Address, creds.Port, creds.LocalKey)
		if err != nil {
			return nil, err
		}
		return local, nil
	case creds.APIKey != "" && creds.APISecret != "":
		cloud, err := NewCloudClient(CloudOptions{
			DeviceID:  creds.DeviceID,
			APIKey:    creds.APIKey,
			APISecret: creds.APISecret,
			Region:    creds.Region,
			BaseURL:   creds.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		return cloud, nil
	default:
		return nil, ErrNoCredentials
	}
}
