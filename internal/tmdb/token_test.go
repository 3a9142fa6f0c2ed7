package tmdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"
)

type TokenManagerSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *TokenManagerSuite) SetupTest() {
	s.ctx = context.Background()
}

func TestTokenManagerSuite(t *testing.T) {
	suite.Run(t, new(TokenManagerSuite))
}

// newAuthServer serves the authentication endpoint and counts how many
// times it was hit.
func newAuthServer(calls *atomic.Int32, status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/authentication" {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(`{"success":true}`))
		} else {
			_, _ = w.Write([]byte(`{"success":false,"status_code":7,"status_message":"Invalid API key"}`))
		}
	}))
}

func (s *TokenManagerSuite) TestGetValidToken() {
	s.Run("returns the configured key after a successful refresh", func() {
		var calls atomic.Int32
		srv := newAuthServer(&calls, http.StatusOK)
		defer srv.Close()

		tm := NewTokenManager("test-key", srv.URL)
		token, err := tm.GetValidToken(s.ctx)
		s.Require().NoError(err)
		s.Equal("test-key", token)
		s.Equal(int32(1), calls.Load())
	})

	s.Run("serves the cached token without another upstream call", func() {
		var calls atomic.Int32
		srv := newAuthServer(&calls, http.StatusOK)
		defer srv.Close()

		tm := NewTokenManager("test-key", srv.URL)
		_, err := tm.GetValidToken(s.ctx)
		s.Require().NoError(err)
		_, err = tm.GetValidToken(s.ctx)
		s.Require().NoError(err)
		s.Equal(int32(1), calls.Load())
	})

	s.Run("concurrent callers share one refresh", func() {
		var calls atomic.Int32
		srv := newAuthServer(&calls, http.StatusOK)
		defer srv.Close()

		tm := NewTokenManager("test-key", srv.URL)

		var wg sync.WaitGroup
		for range 10 {
			wg.Go(func() {
				token, err := tm.GetValidToken(s.ctx)
				s.NoError(err)
				s.Equal("test-key", token)
			})
		}
		wg.Wait()
		s.Equal(int32(1), calls.Load())
	})
}

func (s *TokenManagerSuite) TestRefreshFailures() {
	s.Run("missing API key fails without an upstream call", func() {
		var calls atomic.Int32
		srv := newAuthServer(&calls, http.StatusOK)
		defer srv.Close()

		tm := NewTokenManager("", srv.URL)
		_, err := tm.GetValidToken(s.ctx)

		var authErr *AuthenticationError
		s.Require().ErrorAs(err, &authErr)
		s.Equal(int32(0), calls.Load())
	})

	s.Run("non-OK status surfaces an authentication error with the status", func() {
		var calls atomic.Int32
		srv := newAuthServer(&calls, http.StatusUnauthorized)
		defer srv.Close()

		tm := NewTokenManager("bad-key", srv.URL)
		_, err := tm.GetValidToken(s.ctx)

		var authErr *AuthenticationError
		s.Require().ErrorAs(err, &authErr)
		s.Equal(http.StatusUnauthorized, authErr.StatusCode)
	})
}

func (s *TokenManagerSuite) TestInvalidateToken() {
	var calls atomic.Int32
	srv := newAuthServer(&calls, http.StatusOK)
	defer srv.Close()

	tm := NewTokenManager("test-key", srv.URL)
	_, err := tm.GetValidToken(s.ctx)
	s.Require().NoError(err)

	tm.InvalidateToken()
	info := tm.Info()
	s.True(info.HasToken)
	s.False(info.IsValid)

	// Invalidation forces the next call to refresh.
	_, err = tm.GetValidToken(s.ctx)
	s.Require().NoError(err)
	s.Equal(int32(2), calls.Load())
	s.True(tm.Info().IsValid)
}
