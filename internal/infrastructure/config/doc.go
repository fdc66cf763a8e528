// Package config loads and validates ZWave Hub configuration.
//
// Configuration is read from a YAML file, merged over hardcoded defaults,
// and finally overridden by ZWAVEHUB_* environment variables. Secrets
// (OAuth client secret, JWT signing secret, InfluxDB token) should always
// be supplied via the environment rather than the file.
//
// A loaded Config is immutable by convention: it is built once in main and
// passed by value (per-section) to the components that need it.
package config
