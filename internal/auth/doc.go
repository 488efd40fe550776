// Package auth implements the OAuth2 credential lifecycle for the proxied
// Dropbox account.
//
// A single Manager owns the in-memory Credential and mirrors every
// successful change to an encrypted token file through the secrets store.
// It performs the authorization-code-with-PKCE exchange, serves cached
// access tokens while they are fresh, and drives the refresh loop when the
// token approaches expiry: bounded retries, a cooldown guard against
// refresh storms, and classification of provider failures into retryable
// and non-retryable kinds (RefreshError).
//
// The refresh path is mutex-guarded so concurrent tool invocations share
// one refresh instead of racing the provider and the token file.
package auth
