package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/suite"
)

type RateLimiterSuite struct {
	suite.Suite
	limiter *RateLimiter
}

func (s *RateLimiterSuite) SetupTest() {
	s.limiter = NewRateLimiter(5, time.Minute, nil)
}

func (s *RateLimiterSuite) TearDownTest() {
	s.limiter.Stop()
}

func TestRateLimiterSuite(t *testing.T) {
	suite.Run(t, new(RateLimiterSuite))
}

func (s *RateLimiterSuite) TestWindowBudget() {
	s.Run("remaining decreases with each admitted request", func() {
		for n := 1; n <= 5; n++ {
			result := s.limiter.Check("10.0.0.1")
			s.True(result.Allowed)
			s.Equal(5, result.Limit)
			s.Equal(5-n, result.Remaining)
		}
	})

	s.Run("request over budget is rejected with retry guidance", func() {
		for range 5 {
			s.limiter.Check("10.0.0.2")
		}
		result := s.limiter.Check("10.0.0.2")
		s.False(result.Allowed)
		s.Equal(0, result.Remaining)
		s.Positive(result.RetryAfter)
		s.True(result.ResetTime.After(time.Now()))
	})

	s.Run("keys have independent budgets", func() {
		for range 6 {
			s.limiter.Check("10.0.0.3")
		}
		result := s.limiter.Check("10.0.0.4")
		s.True(result.Allowed)
	})
}

func (s *RateLimiterSuite) TestWindowRollover() {
	limiter := NewRateLimiter(2, 50*time.Millisecond, nil)
	defer limiter.Stop()

	for range 3 {
		limiter.Check("10.0.0.5")
	}
	s.False(limiter.Check("10.0.0.5").Allowed)

	time.Sleep(60 * time.Millisecond)

	// Past the reset time the key starts a fresh window, prior
	// rejections notwithstanding.
	result := limiter.Check("10.0.0.5")
	s.True(result.Allowed)
	s.Equal(1, result.Remaining)
}

func (s *RateLimiterSuite) TestReset() {
	for range 6 {
		s.limiter.Check("10.0.0.6")
	}
	s.False(s.limiter.Check("10.0.0.6").Allowed)

	s.limiter.Reset("10.0.0.6")

	result := s.limiter.Check("10.0.0.6")
	s.True(result.Allowed)
	s.Equal(4, result.Remaining)
}

func (s *RateLimiterSuite) TestStats() {
	s.limiter.Check("10.0.0.7")
	s.limiter.Check("10.0.0.7")
	s.limiter.Check("10.0.0.8")

	stats := s.limiter.GetStats()
	s.Equal(2, stats.TotalKeys)

	counts := make(map[string]int)
	for _, entry := range stats.Entries {
		counts[entry.Key] = entry.Count
	}
	// Keys are reported without the internal store prefix.
	s.Equal(2, counts["10.0.0.7"])
	s.Equal(1, counts["10.0.0.8"])
}

func (s *RateLimiterSuite) TestSweepRemovesExpiredEntries() {
	limiter := NewRateLimiter(5, 10*time.Millisecond, nil)
	defer limiter.Stop()

	limiter.Check("10.0.0.9")
	time.Sleep(20 * time.Millisecond)
	limiter.sweep()

	s.Equal(0, limiter.GetStats().TotalKeys)
}

type RateLimitMiddlewareSuite struct {
	suite.Suite
}

func TestRateLimitMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(RateLimitMiddlewareSuite))
}

func (s *RateLimitMiddlewareSuite) newApp(limiter *RateLimiter) *fiber.App {
	app := fiber.New()
	app.Get("/", limiter.Handler("slow down"), func(c fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func (s *RateLimitMiddlewareSuite) TestHeadersOnSuccess() {
	limiter := NewRateLimiter(3, time.Minute, nil)
	defer limiter.Stop()
	app := s.newApp(limiter)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	resp, err := app.Test(req)
	s.Require().NoError(err)

	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.Equal("3", resp.Header.Get("X-RateLimit-Limit"))
	s.Equal("2", resp.Header.Get("X-RateLimit-Remaining"))
	s.NotEmpty(resp.Header.Get("X-RateLimit-Reset"))
}

func (s *RateLimitMiddlewareSuite) TestRejectionResponse() {
	limiter := NewRateLimiter(1, time.Minute, nil)
	defer limiter.Stop()
	app := s.newApp(limiter)

	first := httptest.NewRequest("GET", "/", nil)
	first.Header.Set("X-Real-Ip", "203.0.113.8")
	_, err := app.Test(first)
	s.Require().NoError(err)

	second := httptest.NewRequest("GET", "/", nil)
	second.Header.Set("X-Real-Ip", "203.0.113.8")
	resp, err := app.Test(second)
	s.Require().NoError(err)

	s.Equal(fiber.StatusTooManyRequests, resp.StatusCode)
	s.NotEmpty(resp.Header.Get("Retry-After"))
	s.Equal("0", resp.Header.Get("X-RateLimit-Remaining"))
}

func (s *RateLimitMiddlewareSuite) TestKeyDerivation() {
	limiter := NewRateLimiter(1, time.Minute, nil)
	defer limiter.Stop()
	app := s.newApp(limiter)

	// Different forwarded IPs land in different buckets.
	for _, ip := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Forwarded-For", ip)
		resp, err := app.Test(req)
		s.Require().NoError(err)
		s.Equal(fiber.StatusOK, resp.StatusCode)
	}

	// Requests with no identifying header share the unknown bucket.
	anon1 := httptest.NewRequest("GET", "/", nil)
	resp, err := app.Test(anon1)
	s.Require().NoError(err)
	s.Equal(fiber.StatusOK, resp.StatusCode)

	anon2 := httptest.NewRequest("GET", "/", nil)
	resp, err = app.Test(anon2)
	s.Require().NoError(err)
	s.Equal(fiber.StatusTooManyRequests, resp.StatusCode)
}
