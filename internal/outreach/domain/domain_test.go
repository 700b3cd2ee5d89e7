package domain

import (
	"context"
	"errors"
	"testing"
)

func TestCallStatusTerminality(t *testing.T) {
	for _, s := range ActiveCallStatuses {
		if s.IsTerminal() {
			t.Fatalf("expected %s to be non-terminal", s)
		}
	}
	for _, s := range []CallStatus{CallStatusEnded, CallStatusFailed, CallStatusNoAnswer, CallStatusCanceled} {
		if !s.IsTerminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
}

func TestSeverityFor(t *testing.T) {
	cases := []struct {
		err  error
		want Severity
	}{
		{ErrChannelNotImplemented, SeverityInfo},
		{ErrQuotaExceeded, SeverityCritical},
		{ProviderError("smtp send", errors.New("535 auth failed")), SeverityCritical},
		{context.DeadlineExceeded, SeverityWarning},
	}
	for _, tc := range cases {
		if got := SeverityFor(tc.err); got != tc.want {
			t.Fatalf("SeverityFor(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestProviderErrorKeepsBothChains(t *testing.T) {
	err := ProviderError("place call", context.DeadlineExceeded)
	if !errors.Is(err, ErrProvider) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected both sentinels in %v", err)
	}
}

func TestChannelToggles(t *testing.T) {
	toggles := ChannelToggles{Email: true, Call: true}
	if toggles.Enabled(ChannelSMS) {
		t.Fatal("expected sms to be disabled")
	}
	list := toggles.List()
	if len(list) != 2 || list[0] != ChannelEmail || list[1] != ChannelCall {
		t.Fatalf("unexpected list %v", list)
	}
}

func TestParseChannel(t *testing.T) {
	if ch, ok := ParseChannel(" call "); !ok || ch != ChannelCall {
		t.Fatalf("unexpected parse %q %v", ch, ok)
	}
	if _, ok := ParseChannel("fax"); ok {
		t.Fatal("expected fax to be rejected")
	}
}
