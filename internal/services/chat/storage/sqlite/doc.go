// Package sqlite provides the chat persistence adapter backed by SQLite.
//
// It stores conversation messages append-only and keeps a read copy of user
// identity records for connection authentication.
package sqlite
