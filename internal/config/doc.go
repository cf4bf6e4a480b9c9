// Package config loads, normalizes, and validates OATS configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OATS_ANNOUNCE_URL. The Config type centralizes every knob the CLI needs:
// output and torrent directories, requested formats, tool overrides, and
// torrent metadata.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
