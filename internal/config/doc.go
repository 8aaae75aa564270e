// Package config manages binnacle repository configuration.
//
// It handles:
//   - The per-repository config file (.git/.binnacle_config)
//   - Backend selection precedence across flags, environment and the config file
package config
