// internal/app/system/ratelimit/ratelimit_test.go
package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_AllowAndReset(t *testing.T) {
	l := New(2, time.Minute)

	if !l.Allow("k") {
		t.Fatal("first request should be allowed")
	}
	if !l.Allow("k") {
		t.Fatal("second request should be allowed")
	}
	if l.Allow("k") {
		t.Fatal("third request should be blocked")
	}
	if !l.Allow("other") {
		t.Fatal("separate key should not share the window")
	}

	l.Reset("k")
	if !l.Allow("k") {
		t.Fatal("request after reset should be allowed")
	}
}

func TestLimiter_WindowExpires(t *testing.T) {
	l := New(1, 10*time.Millisecond)

	if !l.Allow("k") {
		t.Fatal("first request should be allowed")
	}
	if l.Allow("k") {
		t.Fatal("second request should be blocked")
	}

	time.Sleep(20 * time.Millisecond)
	if !l.Allow("k") {
		t.Fatal("request after window expiry should be allowed")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("POST", "/login", nil)
	r.RemoteAddr = "203.0.113.9:4711"
	if got := ClientIP(r); got != "203.0.113.9" {
		t.Errorf("ClientIP = %q, want 203.0.113.9", got)
	}

	r.Header.Set("X-Real-IP", "198.51.100.3")
	if got := ClientIP(r); got != "198.51.100.3" {
		t.Errorf("ClientIP with X-Real-IP = %q, want 198.51.100.3", got)
	}

	r.Header.Set("X-Forwarded-For", "192.0.2.7, 198.51.100.3")
	if got := ClientIP(r); got != "192.0.2.7" {
		t.Errorf("ClientIP with X-Forwarded-For = %q, want 192.0.2.7", got)
	}
}

func TestLoginLimiter_EmailBudget(t *testing.T) {
	ll := &LoginLimiter{
		ipLimiter:    New(100, time.Minute),
		emailLimiter: New(2, time.Minute),
	}

	r := httptest.NewRequest("POST", "/login", nil)
	r.RemoteAddr = "203.0.113.9:4711"

	for i := 0; i < 2; i++ {
		if ok, _ := ll.Check(r, "Ada@Example.com"); !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	ok, reason := ll.Check(r, "ada@example.com")
	if ok {
		t.Fatal("third attempt for the same account should be blocked")
	}
	if reason == "" {
		t.Error("blocked attempt should carry a client-safe reason")
	}

	ll.ResetEmail("ADA@example.com")
	if ok, _ := ll.Check(r, "ada@example.com"); !ok {
		t.Fatal("attempt after ResetEmail should be allowed")
	}
}
