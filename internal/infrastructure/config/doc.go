// Package config loads and validates doorwatch configuration.
//
// This package manages:
//   - Loading configuration from an optional YAML file
//   - Overriding with DOORWATCH_* environment variables
//   - Validation of required fields
//   - Selection of the device transport (local session or cloud relay)
//
// Security Considerations:
//   - The device local key and cloud secret should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load(os.Getenv("DOORWATCH_CONFIG"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.IP)
package config
