// Package config handles loading and validating Hydroponics Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - An optional .env file beside the config file
//   - Overriding with HYDRO_* environment variables
//   - Validation of required fields
//
// Security Considerations:
//   - Sensitive values (JWT secret, broker passwords, InfluxDB tokens) should be
//     set via environment variables or the .env file, not committed YAML
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.Port)
package config
