// Package ucilog persists the identifiers handed out on European
// certificates, keyed back to the provider event they certify. The log is
// append-only and consulted out-of-band for revocation handling.
package ucilog

import (
	"context"
	"time"
)

// Record links one issued UCI to the provider event it was issued for.
type Record struct {
	Provider string    `json:"provider"`
	Unique   string    `json:"unique"`
	UCI      string    `json:"uci"`
	IssuedAt time.Time `json:"issued_at"`
}

// Store is the append-only UCI log.
type Store interface {
	Append(ctx context.Context, rec Record) error
}
