// Package dropbox provides a narrow client for the Dropbox HTTP API.
//
// The client covers the file operations the server proxies:
//   - Listing and searching files and folders
//   - Fetching metadata
//   - Uploading and downloading content
//   - Moving, copying, and deleting items
//   - Creating folders
//   - Generating temporary download links
//
// RPC endpoints go through api.dropboxapi.com, content endpoints through
// content.dropboxapi.com. Every call carries a bounded request timeout, and
// authentication is delegated to a TokenSource so the credential lifecycle
// stays outside this package.
//
// Provider failures are mapped to APIError values with stable kinds
// (not-found, malformed-path, permission, invalid-token, conflict,
// rate-limited, server) that callers match with errors.As.
package dropbox
