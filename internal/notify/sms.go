package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SMSGateway posts messages to a generic HTTP SMS provider.
type SMSGateway struct {
	url        string
	apiKey     string
	sender     string
	httpClient *http.Client
}

// NewSMSGateway constructs a gateway client.
func NewSMSGateway(url, apiKey, sender string) *SMSGateway {
	return &SMSGateway{
		url:    url,
		apiKey: apiKey,
		sender: sender,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type smsRequest struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Message string `json:"message"`
}

// SendSMS delivers one message.
func (g *SMSGateway) SendSMS(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(smsRequest{To: to, From: g.sender, Message: body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
