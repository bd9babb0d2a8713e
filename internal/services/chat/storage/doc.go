// Package storage declares persistence interfaces for chat-owned data.
//
// Messages are the only state the chat service owns durably; user records
// are a synced read model of the account service's identities.
package storage
