package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/notification-service/internal/domain"
)

const (
	// WebhookName is the sender name used for rate limit scoping.
	WebhookName = "webhook"

	defaultWebhookTimeout = 10 * time.Second
)

type webhookPayload struct {
	ID      string `json:"id"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// WebhookSender posts notifications as JSON to an HTTP endpoint.
type WebhookSender struct {
	client   *resty.Client
	endpoint string
}

func NewWebhookSender(endpoint string) (*WebhookSender, error) {
	client := resty.New()
	client.SetTimeout(defaultWebhookTimeout)

	return NewWebhookSenderWithClient(endpoint, client)
}

func NewWebhookSenderWithClient(endpoint string, client *resty.Client) (*WebhookSender, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("webhook endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid webhook endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	// Retries belong to the queue; the sender makes exactly one attempt.
	client.SetRetryCount(0)

	return &WebhookSender{
		client:   client,
		endpoint: trimmed,
	}, nil
}

func (s *WebhookSender) Name() string { return WebhookName }

func (s *WebhookSender) Send(ctx context.Context, notification domain.Notification) (*SendResult, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("webhook sender is not initialized")
	}

	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Idempotency-Key", notification.ID).
		SetBody(webhookPayload{
			ID:      notification.ID,
			To:      notification.Recipient,
			Subject: notification.Subject,
			Message: notification.Message,
		}).
		Post(s.endpoint)
	if err != nil {
		return nil, &ProviderError{
			Message:   "webhook request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &ProviderError{
			Message:   "webhook returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	body := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &SendResult{
			StatusCode: statusCode,
			Body:       body,
			MessageID:  responseMessageID(response),
		}, nil
	}

	return nil, &ProviderError{
		StatusCode: statusCode,
		Message:    statusErrorMessage(statusCode, body),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	switch {
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusTooManyRequests:
		return true
	case statusCode >= http.StatusInternalServerError && statusCode <= 599:
		return true
	default:
		return false
	}
}

func statusErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("webhook returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func responseMessageID(response *resty.Response) string {
	for _, key := range []string{"X-Request-ID", "X-Correlation-ID"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}
	return ""
}
