// Package audit emits issuance audit records to Kafka. Publishing is
// fire-and-forget: a broker outage must never fail an issuance.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Record is one issued credential, keyed by the originating event.
type Record struct {
	RequestID  string    `json:"requestId"`
	Provider   string    `json:"provider"`
	Unique     string    `json:"unique"`
	UCI        string    `json:"uci,omitempty"`
	Kind       string    `json:"kind"`
	IsSpecimen bool      `json:"isSpecimen"`
	IssuedAt   time.Time `json:"issuedAt"`
}

// Kinds of issued credentials.
const (
	KindDomestic = "domestic"
	KindEuropean = "european"
)

// Publisher accepts audit records. Implementations must not block issuance.
type Publisher interface {
	Publish(ctx context.Context, rec Record)
	Close() error
}

// NoopPublisher discards all records. Used when auditing is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Record) {}
func (NoopPublisher) Close() error                    { return nil }

func encode(rec Record, logger *slog.Logger) []byte {
	payload, err := json.Marshal(rec)
	if err != nil {
		logger.Error("audit record not serializable", "error", err)
		return nil
	}
	return payload
}
