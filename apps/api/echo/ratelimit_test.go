package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func Test_rateLimiter_allow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := newRateLimiter(1, 3)
	rl.nowFunc = clock.Now

	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow("10.0.0.1"), "request %d within burst", i)
	}
	assert.False(t, rl.allow("10.0.0.1"), "burst exhausted")

	// other clients have their own bucket
	assert.True(t, rl.allow("10.0.0.2"))

	// one token per second
	clock.Advance(time.Second)
	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"))

	clock.Advance(10 * time.Second)
	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow("10.0.0.1"))
	}
	assert.False(t, rl.allow("10.0.0.1"))
}

func Test_rateLimiter_minBurst(t *testing.T) {
	rl := newRateLimiter(1, 0)
	assert.Equal(t, 1, rl.burst)
}

func Test_rateLimiter_sweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := newRateLimiter(1, 1)
	rl.nowFunc = clock.Now

	rl.allow("10.0.0.1")
	rl.allow("10.0.0.2")
	require.Len(t, rl.visitors, 2)

	clock.Advance(2 * time.Minute)
	rl.allow("10.0.0.2")
	assert.Len(t, rl.visitors, 2, "nobody is stale yet")

	clock.Advance(2 * time.Minute)
	rl.allow("10.0.0.3")
	assert.Len(t, rl.visitors, 2)
	assert.NotContains(t, rl.visitors, "10.0.0.1")
	assert.Contains(t, rl.visitors, "10.0.0.2")
	assert.Contains(t, rl.visitors, "10.0.0.3")
}

func Test_rateLimiter_middleware(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := newRateLimiter(1, 2)
	rl.nowFunc = clock.Now

	e := echo.New()
	handler := rl.middleware()(func(ctx echo.Context) error {
		return ctx.NoContent(http.StatusNoContent)
	})

	call := func(ip string) error {
		req := httptest.NewRequest(http.MethodPost, "/v1/users/login", nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		return handler(e.NewContext(req, httptest.NewRecorder()))
	}

	assert.NoError(t, call("10.0.0.1"))
	assert.NoError(t, call("10.0.0.1"))
	assert.Equal(t, errTooManyRequests, call("10.0.0.1"))
	assert.NoError(t, call("10.0.0.9"))
}
