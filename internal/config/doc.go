// Package config loads, normalizes, and validates smart-trapper configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// SMART_TRAPPER_ENGINE. The Config type holds every knob the CLI and the
// workflow need: where job folders go, which trapping engine to run, the trap
// width baseline, and the sampling scan steps.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical log formats, and clear validation errors.
package config
