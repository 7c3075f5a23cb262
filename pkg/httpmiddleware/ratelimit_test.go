package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// fixedLimiter returns a limiter whose clock only moves when advanced.
func fixedLimiter(cfg RateLimitConfig) (*RateLimiter, *time.Time) {
	rl := NewRateLimiter(cfg)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func serve(h http.Handler, remote string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remote
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_UnderLimit(t *testing.T) {
	rl, _ := fixedLimiter(RateLimitConfig{Max: 5, Window: time.Minute})
	h := rl.Middleware()(okHandler())

	for i := range 5 {
		w := serve(h, "192.168.1.1:12345", nil)
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	rl, _ := fixedLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	h := rl.Middleware()(okHandler())

	for range 2 {
		require.Equal(t, http.StatusOK, serve(h, "10.0.0.1:9999", nil).Code)
	}

	w := serve(h, "10.0.0.1:9999", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "30", w.Header().Get("Retry-After"))

	var (
		code    int
		message string
	)
	err := jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			code, err = d.Int()
		case "message":
			message, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "rate limit exceeded", message)
}

func TestRateLimit_Refills(t *testing.T) {
	rl, now := fixedLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	h := rl.Middleware()(okHandler())

	for range 2 {
		require.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1", nil).Code)
	}
	require.Equal(t, http.StatusTooManyRequests, serve(h, "10.0.0.1:1", nil).Code)

	*now = now.Add(30 * time.Second)
	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1", nil).Code)
}

func TestRateLimit_DifferentIPs(t *testing.T) {
	rl, _ := fixedLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	h := rl.Middleware()(okHandler())

	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1234", nil).Code)
	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.2:1234", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "10.0.0.1:5678", nil).Code)
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	rl, _ := fixedLimiter(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("Authorization")
		},
	})
	h := rl.Middleware()(okHandler())

	a := map[string]string{"Authorization": "Bearer a"}
	b := map[string]string{"Authorization": "Bearer b"}
	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1", a).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "10.0.0.1:1", a).Code)
	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1", b).Code)
}

func TestRateLimit_XForwardedFor(t *testing.T) {
	rl, _ := fixedLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	h := rl.Middleware()(okHandler())
	xff := map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}

	assert.Equal(t, http.StatusOK, serve(h, "192.168.1.1:4444", xff).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "192.168.1.2:5555", xff).Code)
}

func TestRateLimit_EvictsIdleClients(t *testing.T) {
	rl, now := fixedLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	h := rl.Middleware()(okHandler())

	serve(h, "10.0.0.1:1", nil)
	serve(h, "10.0.0.2:1", nil)
	require.Equal(t, 2, rl.Len())

	*now = now.Add(30 * time.Second)
	serve(h, "10.0.0.2:1", nil)

	rl.evict(now.Add(45 * time.Second))
	assert.Equal(t, 1, rl.Len())
}
