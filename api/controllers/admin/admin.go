package admin

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodrun-backend/api/controllers/caller"
	"github.com/angelmondragon/foodrun-backend/api/responses"
	"github.com/angelmondragon/foodrun-backend/api/validators"
	internalpoints "github.com/angelmondragon/foodrun-backend/internal/points"
	internalwallets "github.com/angelmondragon/foodrun-backend/internal/wallets"
	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/angelmondragon/foodrun-backend/pkg/logger"
)

type deductionRequest struct {
	OwnerType      string     `json:"owner_type" validate:"required,oneof=restaurant courier"`
	OwnerID        uuid.UUID  `json:"owner_id" validate:"required"`
	Amount         int        `json:"amount" validate:"required,gt=0"`
	Reason         string     `json:"reason" validate:"required,max=200"`
	TicketID       *uuid.UUID `json:"ticket_id,omitempty"`
	OrderID        *uuid.UUID `json:"order_id,omitempty"`
	IdempotencyKey string     `json:"idempotency_key,omitempty" validate:"max=128"`
}

type referralRegistrar interface {
	Register(ctx context.Context, restaurantID, adminID uuid.UUID) (*models.RestaurantReferral, error)
}

type referralRequest struct {
	AdminID *uuid.UUID `json:"admin_id,omitempty"`
}

// ReconcileWallet compares a wallet's stored balance with its ledger.
func ReconcileWallet(svc internalwallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}
		walletID, err := validators.URLParamUUID(r, "walletId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithWalletID(ctx, walletID.String())
		}
		result, err := svc.Reconcile(ctx, walletID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// DeductPoints applies a staff penalty to a restaurant or courier.
func DeductPoints(svc internalpoints.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "points service unavailable"))
			return
		}
		adminID, role, err := caller.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload deductionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.DeductPoints(r.Context(), internalpoints.DeductInput{
			OwnerType:      enums.PointsOwnerType(payload.OwnerType),
			OwnerID:        payload.OwnerID,
			Amount:         payload.Amount,
			Reason:         validators.SanitizeString(payload.Reason, 200),
			TicketID:       payload.TicketID,
			OrderID:        payload.OrderID,
			AdminID:        adminID,
			AdminRole:      role,
			IdempotencyKey: payload.IdempotencyKey,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// RegisterReferral records which admin brought a restaurant onto the platform.
// Admins refer under their own id; supervisors may name the admin.
func RegisterReferral(repo referralRegistrar, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "referral repository unavailable"))
			return
		}
		callerID, role, err := caller.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		restaurantID, err := validators.URLParamUUID(r, "restaurantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload referralRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		adminID := callerID
		if payload.AdminID != nil && *payload.AdminID != callerID {
			if role != enums.RoleSupervisor {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only supervisors can refer on behalf of another admin"))
				return
			}
			adminID = *payload.AdminID
		}

		referral, err := repo.Register(r.Context(), restaurantID, adminID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, referral)
	}
}
