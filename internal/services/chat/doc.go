// Package chat implements real-time messaging transport for rental conversations.
//
// It keeps WebSocket lifecycle, room membership, and fan-out isolated from the
// rental platform's REST surface so the booking and listing services remain the
// source of truth for domain state.
package chat
