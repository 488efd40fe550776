// Package resources implements the MCP resources exposed by the server:
// the credential status under boxkite://auth/status and the recycle bin
// listing under boxkite://recycle-bin.
package resources
