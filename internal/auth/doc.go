// Package auth issues and validates the HS256 service tokens that guard the
// HTTP API. Tokens are validated by signature only; there is no user store,
// since every client is an automation service holding a pre-issued token.
package auth
