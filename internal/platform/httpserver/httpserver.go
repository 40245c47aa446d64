package httpserver

import (
	"net/http"
	"time"
)

// New builds the issuance API server. Request bodies here are small (provider
// event sets and commitment messages), but a sign call holds the connection
// while the domestic and European signers are consulted, retries included, so
// the write timeout is derived from the upstream budget rather than a generic
// default.
func New(addr string, handler http.Handler, upstreamTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      4 * upstreamTimeout,
		IdleTimeout:       2 * time.Minute,
	}
}
