// Package vault manages the encrypted credential files consumed by the
// daemon and maintained by the admin tool.
//
// A vault file holds one entry per line in the form
//
//	username:base64(AES-256-CBC(password))
//
// The cipher key is derived from the operator's master key, stored
// base64-encoded in ~/.pgexporter/master.key with 0600 permissions. All
// writes go through a temporary file in the same directory followed by a
// rename, so a crash never leaves a half-written vault behind.
package vault
