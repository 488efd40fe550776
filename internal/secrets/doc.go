// Package secrets provides authenticated encryption for credential material
// persisted to disk.
//
// The store uses AES-256-GCM. Every Encrypt call generates a fresh random
// nonce; the GCM authentication tag is appended to the ciphertext and
// verified on decrypt, so tampered or truncated blobs fail closed instead of
// yielding partial data.
//
// On-disk format is a small JSON envelope with hex-encoded fields:
//
//	{"iv": "<hex nonce>", "encryptedData": "<hex ciphertext||tag>"}
//
// The encryption key is provisioned at startup (base64 or raw secret, first
// 32 bytes used). A missing or short key is a configuration error surfaced
// by NewStore - there is no package-level initialization.
package secrets
