// Package config loads, normalizes, and validates Tramita configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TRAMITA_API_TOKEN. The Config type centralizes every knob the daemon and CLI
// need, allowing the data directory, delivery endpoints, and API credentials to
// be discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
