// Package errors provides structured error handling for rentora services.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Access token errors
	CodeAccessTokenInvalid Code = "ACCESS_TOKEN_INVALID"
	CodeAccessTokenExpired Code = "ACCESS_TOKEN_EXPIRED"

	// Chat errors
	CodeChatMalformedPayload Code = "CHAT_MALFORMED_PAYLOAD"
)
