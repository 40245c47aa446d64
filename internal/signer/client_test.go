package signer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "certo/pkg/domain-errors"
)

// ============================================================================
// SHARED CLIENT TESTS
// ============================================================================

type ClientSuite struct {
	suite.Suite
	ctx context.Context
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *ClientSuite) newClient() *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := NewClient(Options{
		Timeout:     5 * time.Second,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
	}, logger)
	s.Require().NoError(err)
	return client
}

// ============================================================================
// RETRY BEHAVIOR
// ============================================================================

func (s *ClientSuite) TestRetriesTransientStatusUntilSuccess() {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	body, err := s.newClient().PostJSON(s.ctx, "test", srv.URL, map[string]int{"n": 1})
	s.Require().NoError(err)
	s.JSONEq(`{"ok":true}`, string(body))
	s.EqualValues(3, calls.Load())
}

func (s *ClientSuite) TestRetriesRateLimited() {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := s.newClient().PostJSON(s.ctx, "test", srv.URL, nil)
	s.NoError(err)
	s.EqualValues(2, calls.Load())
}

func (s *ClientSuite) TestDoesNotRetryClientError() {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := s.newClient().PostJSON(s.ctx, "test", srv.URL, nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUpstream))
	s.EqualValues(1, calls.Load())
}

func (s *ClientSuite) TestExhaustsAttemptBudget() {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := s.newClient().PostJSON(s.ctx, "test", srv.URL, nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUpstream))
	s.EqualValues(3, calls.Load())
}

func (s *ClientSuite) TestNetworkErrorIsRetryable() {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		// Hijack and drop the connection mid-request.
		hj, ok := w.(http.Hijacker)
		s.Require().True(ok)
		conn, _, err := hj.Hijack()
		s.Require().NoError(err)
		conn.Close()
	}))
	defer srv.Close()

	_, err := s.newClient().PostJSON(s.ctx, "test", srv.URL, nil)
	s.Require().Error(err)
	s.EqualValues(3, calls.Load())
}

func (s *ClientSuite) TestContextCancellationStopsBackoff() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := NewClient(Options{MaxAttempts: 5, BaseDelay: time.Hour}, logger)
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(s.ctx, 50*time.Millisecond)
	defer cancel()

	_, err = client.PostJSON(ctx, "test", srv.URL, nil)
	s.ErrorIs(err, context.DeadlineExceeded)
}

// ============================================================================
// REQUEST ENCODING
// ============================================================================

func (s *ClientSuite) TestPostsJSONBody() {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Equal("application/json", r.Header.Get("Content-Type"))
		s.NoError(json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := s.newClient().PostJSON(s.ctx, "test", srv.URL, map[string]string{"key": "value"})
	s.Require().NoError(err)
	s.Equal("value", got["key"])
}
