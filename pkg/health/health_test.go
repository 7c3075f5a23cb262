package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passingCheck() CheckFunc {
	return func(_ context.Context) error {
		return nil
	}
}

func failingCheck(msg string) CheckFunc {
	return func(_ context.Context) error {
		return errors.New(msg)
	}
}

type statusBody struct {
	Status string
	Checks map[string]string
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) statusBody {
	t.Helper()
	var body statusBody
	d := jx.DecodeBytes(w.Body.Bytes())
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			s, err := d.Str()
			body.Status = s
			return err
		case "checks":
			body.Checks = make(map[string]string)
			return d.Obj(func(d *jx.Decoder, name string) error {
				s, err := d.Str()
				body.Checks[name] = s
				return err
			})
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)
	return body
}

func evalN(h *Health, kind Kind, n int) {
	for _, p := range h.list(kind) {
		for range n {
			p.eval(context.Background())
		}
	}
}

func TestLiveEndpoint_AllPassing(t *testing.T) {
	h := New()
	h.Register(Liveness, Check{Name: "check1", Func: passingCheck()})
	h.Register(Liveness, Check{Name: "check2", Func: passingCheck()})

	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "ok", decodeStatus(t, w).Status)
}

func TestLiveEndpoint_FailingCheck(t *testing.T) {
	h := New()
	h.Register(Liveness, Check{Name: "db", Func: failingCheck("connection refused")})
	evalN(h, Liveness, 3)

	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeStatus(t, w)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "connection refused", body.Checks["db"])
}

func TestLiveEndpoint_FailureBelowThreshold(t *testing.T) {
	h := New()
	h.Register(Liveness, Check{Name: "flaky", Func: failingCheck("temporary")})
	evalN(h, Liveness, 2)

	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.Register(Readiness, Check{Name: "postgres", Func: passingCheck()})

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decodeStatus(t, w).Checks, "_readiness")

	h.SetReady(true)
	w = httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestReadyEndpoint_OneFailing(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.Register(Readiness, Check{Name: "postgres", Func: passingCheck()})
	h.Register(Readiness, Check{Name: "catalog", Func: failingCheck("empty"), FailureThreshold: 1})
	evalN(h, Readiness, 1)

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeStatus(t, w)
	assert.Equal(t, map[string]string{"catalog": "empty"}, body.Checks)
	assert.False(t, h.IsReady())
}

func TestCheckRecovery(t *testing.T) {
	var (
		mu   sync.Mutex
		fail = true
	)
	h := New()
	h.Register(Liveness, Check{Name: "db", FailureThreshold: 1, Func: func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return errors.New("down")
		}
		return nil
	}})

	evalN(h, Liveness, 1)
	assert.NotEmpty(t, failures(h.list(Liveness)))

	mu.Lock()
	fail = false
	mu.Unlock()
	evalN(h, Liveness, 1)
	assert.Empty(t, failures(h.list(Liveness)))
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := New()
	h.Register(Readiness, Check{Name: "db", Func: failingCheck("down"), FailureThreshold: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool {
		return len(failures(h.list(Readiness))) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	require.Error(t, GoroutineCountCheck(0)(context.Background()))
}

func TestMinCountCheck(t *testing.T) {
	n := 0
	check := MinCountCheck("catalog", func() int { return n }, 1)
	require.Error(t, check(context.Background()))
	n = 3
	require.NoError(t, check(context.Background()))
}
