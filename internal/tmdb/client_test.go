package tmdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ClientSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *ClientSuite) SetupTest() {
	s.ctx = context.Background()
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

// newUpstream returns a server whose /data endpoint replies with the given
// status sequence, falling back to the last entry, and whose
// /authentication endpoint always succeeds.
func newUpstream(statuses []int, authCalls *atomic.Int32) *httptest.Server {
	var dataCalls atomic.Int32
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/authentication":
			if authCalls != nil {
				authCalls.Add(1)
			}
			_, _ = w.Write([]byte(`{"success":true}`))
		case "/data":
			n := int(dataCalls.Add(1)) - 1
			if n >= len(statuses) {
				n = len(statuses) - 1
			}
			w.WriteHeader(statuses[n])
			if statuses[n] == http.StatusOK {
				_, _ = w.Write([]byte(`{"value":"hello"}`))
			}
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestClient(baseURL, apiKey string) *Client {
	client := NewClient(baseURL, NewTokenManager(apiKey, baseURL))
	client.retryDelay = time.Millisecond
	return client
}

func (s *ClientSuite) TestRetryOn401() {
	s.Run("recovers when the token starts working again", func() {
		var authCalls atomic.Int32
		srv := newUpstream([]int{401, 401, 200}, &authCalls)
		defer srv.Close()

		client := newTestClient(srv.URL, "key")

		var out struct {
			Value string `json:"value"`
		}
		err := client.Get(s.ctx, "/data", nil, &out)
		s.Require().NoError(err)
		s.Equal("hello", out.Value)
		// Initial refresh plus one re-refresh per 401.
		s.Equal(int32(3), authCalls.Load())
	})

	s.Run("gives up after exhausting retries", func() {
		srv := newUpstream([]int{401, 401, 401, 401}, nil)
		defer srv.Close()

		client := newTestClient(srv.URL, "key")

		err := client.Get(s.ctx, "/data", nil, nil)
		var authErr *AuthenticationError
		s.Require().ErrorAs(err, &authErr)
		s.Contains(authErr.Message, "multiple retries")
	})
}

func (s *ClientSuite) TestNonAuthErrors() {
	s.Run("other HTTP errors are not retried", func() {
		var authCalls atomic.Int32
		srv := newUpstream([]int{500}, &authCalls)
		defer srv.Close()

		client := newTestClient(srv.URL, "key")

		err := client.Get(s.ctx, "/data", nil, nil)
		var reqErr *RequestError
		s.Require().ErrorAs(err, &reqErr)
		s.Equal(http.StatusInternalServerError, reqErr.StatusCode)
		s.Equal(int32(1), authCalls.Load())
	})

	s.Run("application-level failure in a 2xx body is an error", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/authentication" {
				_, _ = w.Write([]byte(`{"success":true}`))
				return
			}
			_, _ = w.Write([]byte(`{"success":false,"status_message":"resource gone"}`))
		}))
		defer srv.Close()

		client := newTestClient(srv.URL, "key")

		err := client.Get(s.ctx, "/data", nil, nil)
		var reqErr *RequestError
		s.Require().ErrorAs(err, &reqErr)
		s.Contains(reqErr.Body, "resource gone")
	})

	s.Run("missing API key is fatal immediately", func() {
		srv := newUpstream([]int{200}, nil)
		defer srv.Close()

		client := newTestClient(srv.URL, "")

		err := client.Get(s.ctx, "/data", nil, nil)
		var authErr *AuthenticationError
		s.Require().ErrorAs(err, &authErr)
		s.NotContains(authErr.Message, "multiple retries")
	})
}

func (s *ClientSuite) TestHealthCheck() {
	s.Run("healthy when configuration is reachable", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/authentication":
				_, _ = w.Write([]byte(`{"success":true}`))
			case "/configuration":
				_, _ = w.Write([]byte(`{"images":{}}`))
			}
		}))
		defer srv.Close()

		client := newTestClient(srv.URL, "key")
		s.True(client.HealthCheck(s.ctx))
	})

	s.Run("unhealthy on upstream failure, error swallowed", func() {
		srv := newUpstream(nil, nil)
		srv.Close()

		client := newTestClient(srv.URL, "key")
		s.False(client.HealthCheck(s.ctx))
	})
}
