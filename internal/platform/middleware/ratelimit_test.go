package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRateLimit_AllowsWithinBurst(t *testing.T) {
	e := echo.New()
	e.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 3}))
	e.GET("/", okHandler)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
}

func TestRateLimit_RejectsOverBurst(t *testing.T) {
	e := echo.New()
	e.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1}))
	e.GET("/", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimit_SeparateKeysPerSubject(t *testing.T) {
	store := newRateLimiterStore()

	if !store.getBucket("alice:1.2.3.4", 0.001, 1).allow() {
		t.Fatal("alice's first request should pass")
	}
	if store.getBucket("alice:1.2.3.4", 0.001, 1).allow() {
		t.Fatal("alice's second request should be limited")
	}
	if !store.getBucket("bob:1.2.3.4", 0.001, 1).allow() {
		t.Fatal("bob must get a separate bucket")
	}
}

func TestRateLimit_SharePathUsesTighterBudget(t *testing.T) {
	e := echo.New()
	e.Use(RateLimit(RateLimitConfig{
		RequestsPerSecond:      100,
		BurstSize:              200,
		ShareRequestsPerSecond: 0.001,
		ShareBurstSize:         2,
	}))
	e.GET("/share/:token", okHandler)
	e.GET("/api/v1/patients", okHandler)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/share/sometoken", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("share request %d: expected 200, got %d", i, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "0" {
			t.Fatalf("expected share limit header, got %q", got)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/share/sometoken", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third share request: expected 429, got %d", rec.Code)
	}

	// The exhausted share bucket must not bleed into the API surface.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("api request: expected 200, got %d", rec.Code)
	}
}

func TestRateLimit_ShareDefaultsApplied(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 100, BurstSize: 200}.withShareDefaults()
	if cfg.ShareRequestsPerSecond != 5 || cfg.ShareBurstSize != 10 {
		t.Fatalf("expected share defaults 5/10, got %v/%v", cfg.ShareRequestsPerSecond, cfg.ShareBurstSize)
	}
}
