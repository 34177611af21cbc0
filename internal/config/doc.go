// Package config loads, normalizes, and validates hcpextract configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the HCPEXTRACT_STUDY_DIR
// environment fallback. The Config type centralizes every knob the extraction,
// combine, and scheduler commands need so the study tree and status store are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
