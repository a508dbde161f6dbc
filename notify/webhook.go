package notify

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"tallerpos/domain"
)

// WebhookSender posts notices as JSON to the messaging gateway.
type WebhookSender struct {
	client *resty.Client
}

func NewWebhookSender(baseURL string) *WebhookSender {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(8 * time.Second)
	return &WebhookSender{client: client}
}

func (s *WebhookSender) Close() error {
	return s.client.Close()
}

func (s *WebhookSender) SendCashMovement(ctx context.Context, n domain.CashMovementNotice) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(n).
		Post("/notifications/cash-movement")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("cash movement notice rejected: %s", resp.Status())
	}
	return nil
}

func (s *WebhookSender) SendBankTransfer(ctx context.Context, n domain.BankTransferNotice) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(n).
		Post("/notifications/bank-transfer")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("bank transfer notice rejected: %s", resp.Status())
	}
	return nil
}
