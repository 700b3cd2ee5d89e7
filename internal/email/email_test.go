package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestBrevoSenderSendsToAndCc(t *testing.T) {
	var got brevoEmailRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "key" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sender := &BrevoSender{apiKey: "key", fromName: "Outreach", fromEmail: "noreply@example.com", endpoint: srv.URL, client: &http.Client{Timeout: time.Second}}
	err := sender.SendEmail(context.Background(), Message{
		To:      "first@example.com",
		Cc:      []string{"second@example.com", "third@example.com"},
		Subject: "Delivery failed",
		HTML:    "<p>hi</p>",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.To) != 1 || got.To[0].Email != "first@example.com" {
		t.Fatalf("unexpected to %+v", got.To)
	}
	if len(got.Cc) != 2 || got.Cc[1].Email != "third@example.com" {
		t.Fatalf("unexpected cc %+v", got.Cc)
	}
}

func TestBrevoSenderReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	sender := &BrevoSender{endpoint: srv.URL, client: srv.Client()}
	err := sender.SendEmail(context.Background(), Message{To: "a@example.com"})
	if err == nil || !strings.Contains(err.Error(), "status 429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestRenderEscalationEscapesValues(t *testing.T) {
	html, err := RenderEscalation(EscalationEmailData{
		Severity:    "critical",
		Title:       "Email delivery failed",
		Description: "smtp send: 535",
		Fields:      []EscalationField{{Label: "Lead", Value: "<script>x</script>"}},
		Links: []EscalationLink{
			{Label: "Open lead", URL: "https://ops.example.com/leads/1"},
			{Label: "Retry logs", URL: "https://ops.example.com/deliveries/2"},
		},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(html, "<script>x</script>") {
		t.Fatal("expected field values to be escaped")
	}
	for _, want := range []string{"Email delivery failed", "critical", "https://ops.example.com/deliveries/2"} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected %q in output", want)
		}
	}
}

func TestSMTPSenderBuildsCc(t *testing.T) {
	s := NewSMTPSender("smtp.example.com", 587, "", "", "noreply@example.com", "Outreach")
	m, err := s.buildMessage(Message{To: "a@example.com", Cc: []string{"b@example.com"}, Subject: "s", HTML: "<p>x</p>"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cc := m.GetCc(); len(cc) != 1 || cc[0].Address != "b@example.com" {
		t.Fatalf("unexpected cc %v", cc)
	}
	if _, err := s.buildMessage(Message{To: "not an address"}); err == nil {
		t.Fatal("expected invalid recipient to fail")
	}
}
