// Package config handles loading and validating SensorHub configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with SENSORHUB_* environment variables
//   - Validation of required fields and secret strength
//
// Security Considerations:
//   - Signing secrets should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
