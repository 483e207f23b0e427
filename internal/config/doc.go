// Package config manages user-level settings stored at ~/.toolkit/config.yaml.
// It provides functions to load, read, and write configuration keys such as
// the upstream repository URL used by the update orchestrator.
package config
