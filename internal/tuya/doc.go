// Package tuya reads the contact state of a Tuya door sensor.
//
// Two interchangeable transports implement Client:
//
//   - LocalClient talks protocol 3.3 directly to the device on TCP 6668,
//     using the per-device local key for AES-128-ECB payload encryption.
//   - CloudClient queries the Tuya OpenAPI over HTTPS with an HMAC-SHA256
//     signed request, for devices whose local key is not available.
//
// NewClient selects exactly one of them from the supplied Credentials; the
// choice never changes at runtime.
//
// Neither client retries. A failed read returns an *Error (the device or
// cloud reported a problem) or an error wrapping ErrUnexpectedResponse (the
// reply did not have the expected shape). Callers decide what to do next.
//
// Usage:
//
//	client, err := tuya.NewClient(tuya.Credentials{
//	    DeviceID: "bf0123456789abcdef",
//	    Address:  "192.168.1.40",
//	    LocalKey: os.Getenv("DOORWATCH_DEVICE_KEY"),
//	})
//	open, err := client.ReadContact(ctx)
package tuya
