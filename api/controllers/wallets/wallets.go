package wallets

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/foodrun-backend/api/controllers/caller"
	"github.com/angelmondragon/foodrun-backend/api/responses"
	"github.com/angelmondragon/foodrun-backend/api/validators"
	internalwallets "github.com/angelmondragon/foodrun-backend/internal/wallets"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/angelmondragon/foodrun-backend/pkg/logger"
	"github.com/angelmondragon/foodrun-backend/pkg/pagination"
	"github.com/angelmondragon/foodrun-backend/pkg/retry"
)

// withdrawAttempts bounds retries of a payout that hit a transient
// dependency failure. The reference keeps replays from paying twice.
const withdrawAttempts = 3

type withdrawRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Reference   string `json:"reference" validate:"max=128"`
}

// Me returns the caller's wallet balance.
func Me(svc internalwallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := resolveOwner(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		balance, err := svc.GetBalance(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

// Entries pages through the caller's ledger, newest first.
func Entries(svc internalwallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := resolveOwner(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListEntries(r.Context(), owner, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Withdraw pays settled funds out of the caller's wallet.
func Withdraw(svc internalwallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := resolveOwner(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload withdrawRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reference := validators.SanitizeString(payload.Reference, 128)
		if reference == "" {
			reference = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		}

		input := internalwallets.WithdrawInput{
			Owner:       owner,
			AmountCents: payload.AmountCents,
			Reference:   reference,
		}
		var movement *internalwallets.Movement
		err = retry.Do(r.Context(), withdrawAttempts, func(ctx context.Context) error {
			var err error
			movement, err = svc.Withdraw(ctx, input)
			return err
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusCreated
		if movement.AlreadyApplied {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, movement)
	}
}

// ownerTypeForRole maps a caller role to the wallet it owns.
func ownerTypeForRole(role enums.Role) (enums.WalletOwnerType, bool) {
	switch role {
	case enums.RoleRestaurant:
		return enums.WalletOwnerRestaurant, true
	case enums.RoleCourier:
		return enums.WalletOwnerCourier, true
	case enums.RoleAdmin:
		return enums.WalletOwnerAdmin, true
	case enums.RoleCustomer:
		return enums.WalletOwnerCustomer, true
	}
	return "", false
}

func resolveOwner(r *http.Request, svc internalwallets.Service) (internalwallets.Owner, error) {
	if svc == nil {
		return internalwallets.Owner{}, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable")
	}
	userID, role, err := caller.Resolve(r)
	if err != nil {
		return internalwallets.Owner{}, err
	}
	ownerType, ok := ownerTypeForRole(role)
	if !ok {
		return internalwallets.Owner{}, pkgerrors.New(pkgerrors.CodeForbidden, "role has no wallet")
	}
	return internalwallets.Owner{Type: ownerType, ID: userID}, nil
}
