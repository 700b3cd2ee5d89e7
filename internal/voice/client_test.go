package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"outreach_backend/platform/logger"
)

type voiceConfig struct{ url, key string }

func (c voiceConfig) GetVoiceAPIURL() string        { return c.url }
func (c voiceConfig) GetVoiceAPIKey() string        { return c.key }
func (c voiceConfig) GetVoiceAssistantID() string   { return "asst" }
func (c voiceConfig) GetVoicePhoneNumberID() string { return "num" }

func TestPlaceCallSendsCustomer(t *testing.T) {
	var got createCallRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/call" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id":"call-1","status":"queued"}`))
	}))
	defer srv.Close()

	c := NewClient(voiceConfig{url: srv.URL, key: "secret"}, logger.Discard())
	id, err := c.PlaceCall(context.Background(), "asst", "num", Customer{Number: "+31612345678", Name: "Jan Jansen"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "call-1" {
		t.Fatalf("expected call-1, got %s", id)
	}
	if got.AssistantID != "asst" || got.PhoneNumberID != "num" || got.Customer.Number != "+31612345678" {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestGetCallStatusConvertsCost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/call/call-9" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"call-9","status":"ended","endedReason":"customer-ended-call","transcript":"hello","cost":0.237,"endedAt":"2026-01-02T03:04:05Z"}`))
	}))
	defer srv.Close()

	c := NewClient(voiceConfig{url: srv.URL, key: "k"}, logger.Discard())
	report, err := c.GetCallStatus(context.Background(), "call-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Status != "ended" || report.Transcript != "hello" || report.EndedAt == nil {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.CostCents == nil || *report.CostCents != 24 {
		t.Fatalf("expected 24 cents, got %v", report.CostCents)
	}
}

func TestVendorErrorsCarryBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "assistant not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(voiceConfig{url: srv.URL, key: "k"}, logger.Discard())
	_, err := c.PlaceCall(context.Background(), "a", "n", Customer{Number: "+1"})
	if err == nil || !strings.Contains(err.Error(), "assistant not found") {
		t.Fatalf("expected vendor body in error, got %v", err)
	}
}

func TestConfigured(t *testing.T) {
	if NewClient(voiceConfig{url: "https://x"}, logger.Discard()).Configured() {
		t.Fatal("expected client without key to be unconfigured")
	}
	var nilClient *Client
	if nilClient.Configured() {
		t.Fatal("expected nil client to be unconfigured")
	}
}
