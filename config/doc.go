// Package config provides configuration loading and validation for nosdav.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (NOSDAV_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    return err
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
// # Environment Variables
//
// All config keys map to environment variables with NOSDAV_ prefix:
//   - server.port → NOSDAV_SERVER_PORT
//   - storage.mode → NOSDAV_STORAGE_MODE
//   - owners.inline → NOSDAV_OWNERS_INLINE (comma separated)
//
// # Flags
//
// The server flags keep their historical short forms: -p port, -r root,
// -m mode, -o owners, -s https, -k key, -c cert.
//
// # Validation
//
// Configuration is validated using struct tags:
//   - Port must be 1-65535
//   - Storage mode must be singleuser or multiuser
//   - TLS cert and key files are required when TLS is enabled
//   - Database type must be sqlite, postgres or none
//   - Log level must be debug, info, warn, or error
package config
