package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestRateLimitedSignups(t *testing.T) {
	defer goleak.VerifyNone(t)

	limiter := NewRateLimiter(RateLimitConfig{RPS: 0.01, Burst: 1})
	require.NotNil(t, limiter)
	defer limiter.Stop()

	env := newTestEnv(t, func(d *Deps) { d.Limiter = limiter })

	post := func(remoteAddr, name string) *httptest.ResponseRecorder {
		body := `{"dateKey":"2025-11-02","name":"` + name + `","phone":"1","mass":"8:00 AM"}`
		req := httptest.NewRequest(http.MethodPost, "/api/attendee", strings.NewReader(body))
		req.RemoteAddr = remoteAddr
		w := httptest.NewRecorder()
		env.srv.Handler().ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, post("10.0.0.1:4000", "Ann").Code)

	w := post("10.0.0.1:4001", "Bea")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, ErrTooManyRequests, decodeError(t, w).Error)

	assert.Equal(t, http.StatusOK, post("10.0.0.2:4000", "Bea").Code, "limits are per client IP")

	// reads are never limited
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/calendar/public", nil)
		req.RemoteAddr = "10.0.0.1:4002"
		w := httptest.NewRecorder()
		env.srv.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	assert.Nil(t, NewRateLimiter(RateLimitConfig{RPS: 0, Burst: 5}))

	var rl *RateLimiter
	rl.Stop()
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"[2001:db8::1]", "2001:db8::1"},
		{"192.0.2.1", "192.0.2.1"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tt.remote
		assert.Equal(t, tt.want, clientIP(r), tt.remote)
	}
}
