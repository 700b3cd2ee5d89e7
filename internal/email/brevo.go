package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

type BrevoSender struct {
	apiKey    string
	fromName  string
	fromEmail string
	endpoint  string
	client    *http.Client
}

type brevoAddress struct {
	Email string `json:"email"`
}

type brevoEmailRequest struct {
	Sender struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"sender"`
	To          []brevoAddress `json:"to"`
	Cc          []brevoAddress `json:"cc,omitempty"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

func (b *BrevoSender) SendEmail(ctx context.Context, msg Message) error {
	payload := brevoEmailRequest{
		To:          []brevoAddress{{Email: msg.To}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
	}
	payload.Sender.Name = b.fromName
	payload.Sender.Email = b.fromEmail
	for _, cc := range msg.Cc {
		payload.Cc = append(payload.Cc, brevoAddress{Email: cc})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", b.apiKey)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("brevo send failed: status %d: %s", resp.StatusCode, string(data))
	}

	return nil
}
