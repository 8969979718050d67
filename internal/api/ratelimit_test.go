package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func limitedHandler(r rate.Limit, b int) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	return NewRateLimiter(r, b).Middleware(ok)
}

func requestFrom(h http.Handler, ip string) int {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = ip + ":12345"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit_AllowsFirst(t *testing.T) {
	h := limitedHandler(100, 5)
	assert.Equal(t, http.StatusOK, requestFrom(h, "10.0.0.1"))
}

func TestRateLimit_Burst(t *testing.T) {
	h := limitedHandler(0.001, 3)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, requestFrom(h, "10.0.1.1"), "request %d should be allowed", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, requestFrom(h, "10.0.1.1"))
}

func TestRateLimit_PerIP(t *testing.T) {
	h := limitedHandler(0.001, 1)

	for _, ip := range []string{"10.1.1.1", "10.1.1.2"} {
		assert.Equal(t, http.StatusOK, requestFrom(h, ip), "first request from %s should be OK", ip)
	}
	assert.Equal(t, http.StatusTooManyRequests, requestFrom(h, "10.1.1.1"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::1]:8080"
	assert.Equal(t, "::1", clientIP(req))

	req.RemoteAddr = "bare"
	assert.Equal(t, "bare", clientIP(req))
}
