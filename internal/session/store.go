// Package session persists the short-lived state between prepare-issue and
// sign. Tokens are single use: a successful read consumes the entry.
package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a token is unknown, expired, or already spent.
var ErrNotFound = errors.New("session: token not found")

// State is what prepare-issue stashes for the later sign call.
type State struct {
	PrepareIssueMessage []byte `json:"prepareIssueMessage"`
	IssuerNonce         string `json:"issuerNonce"`
	CredentialAmount    int    `json:"credentialAmount"`
}

// Store hands out opaque tokens for session state and consumes them on read.
type Store interface {
	// Put stores the state under a fresh token and returns the token.
	Put(ctx context.Context, st State) (uuid.UUID, error)
	// Take retrieves and deletes the state in one step. A second Take with
	// the same token returns ErrNotFound.
	Take(ctx context.Context, token uuid.UUID) (State, error)
	// Health reports whether the backing store is reachable.
	Health(ctx context.Context) error
}
