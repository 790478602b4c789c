// Package config handles loading and validating devicehub configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading a .env file into the process environment
//   - Overriding with DEVICEHUB_* environment variables
//   - Validation of required fields
//
// Security Considerations:
//   - Sensitive values (passwords, tokens, the JWT secret) should be set via
//     environment variables or the .env file, never the YAML file
//   - An empty security.jwt.secret disables API authentication
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Database.Driver)
package config
