// Package config loads, normalizes, and validates daemon configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// daemon and CLI need: intake ceilings and rate limits, queue depth and aging,
// worker counts and retry policy, cache budgets, engine selection, and
// retention windows.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
