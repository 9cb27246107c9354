package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/harmony/internal/model"
)

func newRequestFrom(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.RemoteAddr = remoteAddr
	return req
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// --- GeneralMiddleware (API全般) のテスト ---

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     2,
		GeneralBurst:    5,
		LoginRate:       1,
		LoginBurst:      1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newRequestFrom("10.0.0.1:5000"))
		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}
}

func TestRateLimitMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    2,
		LoginRate:       1,
		LoginBurst:      1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newRequestFrom("10.0.0.2:5000"))
		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newRequestFrom("10.0.0.2:5001"))

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}

	retryAfter, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || retryAfter < 1 {
		t.Errorf("Retry-After = %q, want positive integer", resp.Header.Get("Retry-After"))
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRateLimited)
	}
}

func TestRateLimitMiddleware_SeparateClientsHaveSeparateBudgets(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		LoginRate:       1,
		LoginBurst:      1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for _, addr := range []string{"10.0.0.3:1", "10.0.0.4:1"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newRequestFrom(addr))
		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("%s: status = %d, want %d", addr, w.Result().StatusCode, http.StatusOK)
		}
	}
	if got := rl.GeneralLimiterCount(); got != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", got)
	}
}

// --- LoginMiddleware のテスト ---

func TestLoginMiddleware_IndependentFromGeneral(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    10,
		LoginRate:       1,
		LoginBurst:      1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	login := rl.LoginMiddleware()(okHandler())
	general := rl.GeneralMiddleware()(okHandler())

	w := httptest.NewRecorder()
	login.ServeHTTP(w, newRequestFrom("10.0.0.5:1"))
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("first login: status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	w = httptest.NewRecorder()
	login.ServeHTTP(w, newRequestFrom("10.0.0.5:1"))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("second login: status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
	}

	w = httptest.NewRecorder()
	general.ServeHTTP(w, newRequestFrom("10.0.0.5:1"))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("general after login limit: status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if rl.LoginLimiterCount() != 1 {
		t.Errorf("LoginLimiterCount = %d, want 1", rl.LoginLimiterCount())
	}
}

// --- クリーンアップのテスト ---

func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		LoginRate:       1,
		LoginBurst:      1,
		CleanupInterval: time.Hour,
	})
	defer rl.Stop()

	rl.general.get("10.0.0.6")
	rl.login.get("10.0.0.6")

	// 最終アクセスを過去に書き換える
	rl.general.limiters["10.0.0.6"].lastAccess = time.Now().Add(-3 * time.Hour)
	rl.login.limiters["10.0.0.6"].lastAccess = time.Now().Add(-3 * time.Hour)
	rl.general.get("10.0.0.7")

	rl.cleanup()

	if got := rl.GeneralLimiterCount(); got != 1 {
		t.Errorf("GeneralLimiterCount = %d, want 1", got)
	}
	if got := rl.LoginLimiterCount(); got != 0 {
		t.Errorf("LoginLimiterCount = %d, want 0", got)
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	if cfg.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", cfg.GeneralBurst)
	}
	if cfg.LoginBurst != 10 {
		t.Errorf("LoginBurst = %d, want 10", cfg.LoginBurst)
	}
	if cfg.GeneralRate != 2 {
		t.Errorf("GeneralRate = %v, want 2", cfg.GeneralRate)
	}
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[::1]:8080", "::1"},
		{"no-port", "no-port"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		if got := ClientKey(req); got != tt.want {
			t.Errorf("ClientKey(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}
