package webhooks

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/angelmondragon/foodrun-backend/api/responses"
	"github.com/angelmondragon/foodrun-backend/api/validators"
	"github.com/angelmondragon/foodrun-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/angelmondragon/foodrun-backend/pkg/logger"
	"github.com/angelmondragon/foodrun-backend/pkg/retry"
)

// SecretHeader carries the shared secret of the payment collaborator.
const SecretHeader = "X-Webhook-Secret"

const captureAttempts = 3

type captureProcessor interface {
	HandleCaptured(ctx context.Context, input payments.CaptureInput) (*payments.CaptureResult, bool, error)
}

type captureResponse struct {
	Duplicate bool                    `json:"duplicate"`
	Result    *payments.CaptureResult `json:"result,omitempty"`
}

// PaymentCaptured records a collaborator's capture callback into escrow.
// Replays of a transaction are acknowledged without side effects.
func PaymentCaptured(processor captureProcessor, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if processor == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment processor unavailable"))
			return
		}
		provided := strings.TrimSpace(r.Header.Get(SecretHeader))
		if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook secret"))
			return
		}

		var input payments.CaptureInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithFields(logg.WithOrderID(ctx, input.OrderID.String()), map[string]any{
				"transaction_id": input.TransactionID,
			})
		}

		var out captureResponse
		err := retry.Do(ctx, captureAttempts, func(ctx context.Context) error {
			result, duplicate, err := processor.HandleCaptured(ctx, input)
			if err != nil {
				return err
			}
			out = captureResponse{Duplicate: duplicate, Result: result}
			return nil
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}
