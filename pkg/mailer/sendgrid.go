package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"thinkwrapper-backend/pkg/faults"
)

// SendGridSender implements Sender using the SendGrid v3 mail send API
type SendGridSender struct {
	apiKey     string
	fromEmail  string
	fromName   string
	baseURL    string
	httpClient *http.Client
}

func NewSendGridSender(apiKey, fromEmail, fromName string) *SendGridSender {
	return &SendGridSender{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  fromName,
		baseURL:   "https://api.sendgrid.com",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *SendGridSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if s.apiKey == "" {
		return faults.ErrNotConfigured
	}

	content := []map[string]string{}
	if textBody != "" {
		content = append(content, map[string]string{"type": "text/plain", "value": textBody})
	}
	if htmlBody != "" {
		content = append(content, map[string]string{"type": "text/html", "value": htmlBody})
	}

	payload := map[string]interface{}{
		"personalizations": []map[string]interface{}{
			{"to": []map[string]string{{"email": to}}},
		},
		"from":    map[string]string{"email": s.fromEmail, "name": s.fromName},
		"subject": subject,
		"content": content,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/v3/mail/send", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return faults.Transient("sendgrid request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted {
		return nil
	}

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return faults.Transient("sendgrid API error (%d): %s", resp.StatusCode, string(respBody))
	}
	return faults.Permanent("sendgrid API error (%d): %s", resp.StatusCode, string(respBody))
}

var _ Sender = (*SendGridSender)(nil)
var _ Sender = (*ConsoleSender)(nil)
