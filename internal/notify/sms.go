package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// SMSClient sends text messages through a JSON HTTP SMS gateway.
type SMSClient struct {
	APIKey     string
	BaseURL    string
	Sender     string
	HTTPClient *http.Client
}

// NewSMSClient returns a client for the gateway at baseURL.
func NewSMSClient(apiKey, baseURL, sender string) *SMSClient {
	return &SMSClient{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Sender:     sender,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Send posts message to phone. The gateway expects digits only, so the
// leading "+" of the canonical form is dropped. Does not log the message.
func (c *SMSClient) Send(ctx context.Context, phone, message string) error {
	if c.APIKey == "" {
		return fmt.Errorf("sms: API key not configured")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("sms: base URL not configured")
	}
	body := map[string]interface{}{
		"numbers": strings.TrimPrefix(phone, "+"),
		"message": message,
	}
	if c.Sender != "" {
		body["sender"] = c.Sender
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sms: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
