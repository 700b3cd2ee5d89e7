package geoip

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"outreach_backend/platform/logger"
)

type stubConfig struct {
	url  string
	rate int
}

func (s stubConfig) GetGeoIPURL() string        { return s.url }
func (s stubConfig) GetGeoIPRatePerMinute() int { return s.rate }
func (s stubConfig) IsGeoIPEnabled() bool       { return s.url != "" }

func TestLookupCachesResults(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path != "/json/8.8.8.8" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":"success","country":"Netherlands","regionName":"Utrecht","city":"Utrecht","timezone":"Europe/Amsterdam"}`))
	}))
	defer srv.Close()

	c := NewClient(stubConfig{url: srv.URL, rate: 10}, logger.Discard())
	for i := 0; i < 3; i++ {
		loc, err := c.Lookup(context.Background(), "8.8.8.8")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if loc.String() != "Utrecht, Utrecht, Netherlands" {
			t.Fatalf("unexpected location %q", loc.String())
		}
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected a single upstream call, got %d", hits)
	}
}

func TestLookupThrottlesWithoutBlocking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","country":"Netherlands"}`))
	}))
	defer srv.Close()

	c := NewClient(stubConfig{url: srv.URL, rate: 1}, logger.Discard())
	if _, err := c.Lookup(context.Background(), "1.1.1.1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	_, err := c.Lookup(context.Background(), "9.9.9.9")
	if !errors.Is(err, ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("throttled lookup should return immediately")
	}
}

func TestLookupDisabledAndInvalid(t *testing.T) {
	disabled := NewClient(stubConfig{}, logger.Discard())
	if _, err := disabled.Lookup(context.Background(), "8.8.8.8"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}

	c := NewClient(stubConfig{url: "http://127.0.0.1:1", rate: 5}, logger.Discard())
	if _, err := c.Lookup(context.Background(), "not-an-ip"); !errors.Is(err, ErrInvalidIP) {
		t.Fatalf("expected ErrInvalidIP, got %v", err)
	}
	loc, err := c.Lookup(context.Background(), "192.168.1.10")
	if err != nil || loc != (Location{}) {
		t.Fatalf("expected empty location for private ip, got %+v %v", loc, err)
	}
}

func TestLookupSurfacesUpstreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	c := NewClient(stubConfig{url: srv.URL, rate: 5}, logger.Discard())
	if _, err := c.Lookup(context.Background(), "8.8.4.4"); err == nil {
		t.Fatal("expected error for 429")
	}
}
