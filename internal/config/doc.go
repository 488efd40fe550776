// Package config loads environment-driven configuration for the boxkite
// server.
//
// All settings bind to BOXKITE_-prefixed environment variables via viper
// (BOXKITE_APP_KEY, BOXKITE_ENCRYPTION_KEY, BOXKITE_MAX_RETRIES, ...).
// Load applies defaults for everything optional; Validate rejects startup
// when the provider app key or encryption key is missing, since the server
// cannot operate without them.
package config
