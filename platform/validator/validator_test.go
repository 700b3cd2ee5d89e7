package validator

import "testing"

type stepInput struct {
	Channel string `validate:"required,channel"`
	Delay   int    `validate:"gte=0"`
}

func TestChannelTag(t *testing.T) {
	v := New()

	if err := v.Struct(stepInput{Channel: "email", Delay: 0}); err != nil {
		t.Fatalf("expected email to be valid, got %v", err)
	}
	if err := v.Struct(stepInput{Channel: "FAX", Delay: 0}); err == nil {
		t.Fatal("expected FAX to be rejected")
	}
	if err := v.Struct(stepInput{Channel: "CALL", Delay: -5}); err == nil {
		t.Fatal("expected negative delay to be rejected")
	}
}
