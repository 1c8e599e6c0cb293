package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kursadbilgin/notification-service/internal/domain"
	"github.com/mrz1836/postmark"
)

// PostmarkName is the sender name used for rate limit scoping.
const PostmarkName = "postmark"

// postmarkUnavailableCode is returned while Postmark is in maintenance.
const postmarkUnavailableCode = 100

var emailValidator = validator.New()

type PostmarkConfig struct {
	ServerToken  string
	AccountToken string
	SenderEmail  string
	// BaseURL overrides the Postmark API endpoint; empty keeps the client default.
	BaseURL string
}

// PostmarkSender delivers notifications as plain-text email through Postmark.
type PostmarkSender struct {
	client *postmark.Client
	from   string
}

func NewPostmarkSender(cfg PostmarkConfig) (*PostmarkSender, error) {
	if strings.TrimSpace(cfg.ServerToken) == "" {
		return nil, fmt.Errorf("postmark server token is required")
	}
	if strings.TrimSpace(cfg.AccountToken) == "" {
		return nil, fmt.Errorf("postmark account token is required")
	}
	if err := emailValidator.Var(cfg.SenderEmail, "required,email"); err != nil {
		return nil, fmt.Errorf("sender email must be a valid email address: %w", err)
	}

	client := postmark.NewClient(cfg.ServerToken, cfg.AccountToken)
	if cfg.BaseURL != "" {
		client.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &PostmarkSender{
		client: client,
		from:   cfg.SenderEmail,
	}, nil
}

// postmarkErrorCode extracts the Postmark API error code. Rejections arrive
// either as an APIError (HTTP 4xx/5xx) or as a non-zero ErrorCode on a 200.
func postmarkErrorCode(resp postmark.EmailResponse, err error) int64 {
	if resp.ErrorCode != 0 {
		return resp.ErrorCode
	}
	var apiErr postmark.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode
	}
	return 0
}

func (s *PostmarkSender) Name() string { return PostmarkName }

func (s *PostmarkSender) Send(ctx context.Context, notification domain.Notification) (*SendResult, error) {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     s.from,
		To:       notification.Recipient,
		Subject:  notification.Subject,
		TextBody: notification.Message,
		Tag:      "notification",
		Metadata: map[string]string{"notificationId": notification.ID},
	})
	if code := postmarkErrorCode(resp, err); code != 0 {
		return nil, &ProviderError{
			Message:   fmt.Sprintf("postmark rejected message with code %d", code),
			Transient: code == postmarkUnavailableCode,
			Cause:     err,
		}
	}
	if err != nil {
		return nil, &ProviderError{
			Message:   "postmark request failed",
			Transient: true,
			Cause:     err,
		}
	}

	return &SendResult{MessageID: resp.MessageID}, nil
}
