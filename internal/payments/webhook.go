package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/foodrun-backend/pkg/logger"
)

// WebhookProcessor wraps Capture with the replay guard used by the HTTP
// callback.
type WebhookProcessor struct {
	service Service
	guard   *IdempotencyGuard
	logg    *logger.Logger
}

func NewWebhookProcessor(svc Service, guard *IdempotencyGuard, logg *logger.Logger) (*WebhookProcessor, error) {
	if svc == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	return &WebhookProcessor{service: svc, guard: guard, logg: logg}, nil
}

// HandleCaptured processes one capture callback. The boolean result is true
// when the transaction had already been handled.
func (p *WebhookProcessor) HandleCaptured(ctx context.Context, input CaptureInput) (*CaptureResult, bool, error) {
	txn := strings.TrimSpace(input.TransactionID)
	seen, err := p.guard.CheckAndMark(ctx, txn)
	if err != nil {
		return nil, false, err
	}
	if seen {
		if p.logg != nil {
			p.logg.Info(p.logg.WithField(ctx, "transaction_id", txn), "duplicate payment callback skipped")
		}
		return nil, true, nil
	}

	result, err := p.service.Capture(ctx, input)
	if err != nil {
		if delErr := p.guard.Delete(ctx, txn); delErr != nil && p.logg != nil {
			p.logg.Error(p.logg.WithField(ctx, "transaction_id", txn), "release payment idempotency key", delErr)
		}
		return nil, false, err
	}
	return result, false, nil
}
