// Package voice is the HTTP client for the outbound voice-call vendor.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

// Customer identifies who the vendor should dial.
type Customer struct {
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
}

// CallStatusReport is the vendor's view of a call.
type CallStatusReport struct {
	CallID      string
	Status      string
	EndedReason string
	StartedAt   *time.Time
	EndedAt     *time.Time
	Transcript  string
	CostCents   *int64
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
}

func NewClient(cfg config.VoiceConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.GetVoiceAPIURL(), "/"),
		apiKey:  cfg.GetVoiceAPIKey(),
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

// Configured reports whether the client has the credentials to place calls.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != "" && c.apiKey != ""
}

type createCallRequest struct {
	AssistantID   string   `json:"assistantId"`
	PhoneNumberID string   `json:"phoneNumberId"`
	Customer      Customer `json:"customer"`
}

type callResponse struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	EndedReason string     `json:"endedReason"`
	StartedAt   *time.Time `json:"startedAt"`
	EndedAt     *time.Time `json:"endedAt"`
	Transcript  string     `json:"transcript"`
	Cost        *float64   `json:"cost"`
}

// PlaceCall asks the vendor to dial customer and returns the vendor call id.
func (c *Client) PlaceCall(ctx context.Context, assistantID, phoneNumberID string, customer Customer) (string, error) {
	var out callResponse
	err := c.do(ctx, http.MethodPost, "/call", createCallRequest{
		AssistantID:   assistantID,
		PhoneNumberID: phoneNumberID,
		Customer:      customer,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("voice vendor returned no call id")
	}
	c.log.Info("voice call placed", "callId", out.ID, "status", out.Status)
	return out.ID, nil
}

// GetCallStatus fetches the current state of a call.
func (c *Client) GetCallStatus(ctx context.Context, callID string) (CallStatusReport, error) {
	var out callResponse
	if err := c.do(ctx, http.MethodGet, "/call/"+callID, nil, &out); err != nil {
		return CallStatusReport{}, err
	}

	report := CallStatusReport{
		CallID:      out.ID,
		Status:      out.Status,
		EndedReason: out.EndedReason,
		StartedAt:   out.StartedAt,
		EndedAt:     out.EndedAt,
		Transcript:  out.Transcript,
	}
	if out.Cost != nil {
		cents := int64(*out.Cost*100 + 0.5)
		report.CostCents = &cents
	}
	return report, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal voice payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("voice request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("voice vendor returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode voice response: %w", err)
	}
	return nil
}
