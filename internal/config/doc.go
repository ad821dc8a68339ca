// Package config loads, normalizes, and validates scribe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GEMINI_API_KEY and HACKMD_API_TOKEN. Environment lookups happen here and
// nowhere else; every other package receives a *Config.
package config
