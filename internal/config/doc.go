// Package config loads, normalizes, and validates orchestrator configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// VPO_DB_PATH. The Config type centralizes every knob the CLI needs, allowing
// the database location, library roots, default policy file, and worker
// settings to be discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
