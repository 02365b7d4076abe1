// Package config loads and validates the static configuration for the
// unx-clipboard core process.
//
// Configuration values are merged from environment variables, command-line
// flags, an optional JSON file, and built-in defaults (in that priority
// order, highest first). The result is a single immutable StructuredConfig
// consumed once at startup; no component re-reads configuration
// mid-operation except at the start of its own tick.
package config
