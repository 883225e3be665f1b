package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodrun-backend/api/controllers/caller"
	"github.com/angelmondragon/foodrun-backend/api/responses"
	"github.com/angelmondragon/foodrun-backend/api/validators"
	internalorders "github.com/angelmondragon/foodrun-backend/internal/orders"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/angelmondragon/foodrun-backend/pkg/logger"
	"github.com/angelmondragon/foodrun-backend/pkg/pagination"
	"github.com/angelmondragon/foodrun-backend/pkg/types"
)

type createOrderRequest struct {
	RestaurantID    uuid.UUID                  `json:"restaurant_id" validate:"required"`
	DeliveryType    string                     `json:"delivery_type" validate:"required,oneof=delivery pickup"`
	PaymentMethod   string                     `json:"payment_method" validate:"required,oneof=online cash"`
	DeliveryAddress *string                    `json:"delivery_address,omitempty"`
	Notes           *string                    `json:"notes,omitempty" validate:"omitempty,max=500"`
	Items           []internalorders.ItemInput `json:"items" validate:"required,min=1,dive"`
}

type deliveryFeeRequest struct {
	FeeCents int64 `json:"fee_cents" validate:"gte=0"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type ratingRequest struct {
	Ratings types.Ratings `json:"ratings" validate:"required,min=1"`
}

// Create places a new order for the authenticated customer.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, _, err := caller.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		deliveryType, err := enums.ParseDeliveryType(payload.DeliveryType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery type"))
			return
		}
		paymentMethod, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		order, err := svc.Create(r.Context(), internalorders.CreateInput{
			CustomerID:      userID,
			RestaurantID:    payload.RestaurantID,
			DeliveryType:    deliveryType,
			PaymentMethod:   paymentMethod,
			DeliveryAddress: payload.DeliveryAddress,
			Notes:           payload.Notes,
			Items:           payload.Items,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// List pages through the orders visible to the caller.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := resolveActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		var status *enums.OrderStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			status = &parsed
		}

		list, err := svc.ListForActor(r.Context(), actor, status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one order to a party of it or to staff.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor, _ *http.Request) (any, error) {
		return svc.Get(ctx, orderID, actor)
	})
}

// SetDeliveryFee records the restaurant's delivery fee and recomputes the total.
func SetDeliveryFee(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor, r *http.Request) (any, error) {
		var payload deliveryFeeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.SetDeliveryFee(ctx, orderID, payload.FeeCents, actor)
	})
}

func Accept(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor, _ *http.Request) (any, error) {
		return svc.Accept(ctx, orderID, actor)
	})
}

func StartPreparing(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor, _ *http.Request) (any, error) {
		return svc.StartPreparing(ctx, orderID, actor)
	})
}

func MarkReady(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor, _ *http.Request) (any, error) {
		return svc.MarkReady(ctx, orderID, actor)
	})
}

// AssignCourier lets the calling courier claim a ready delivery order.
func AssignCourier(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor, _ *http.Request) (any, error) {
		if actor.Role != enums.RoleCourier {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only couriers can claim orders")
		}
		return svc.AssignCourier(ctx, orderID, actor.UserID)
	})
}

func PickUp(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor, _ *http.Request) (any, error) {
		if actor.Role != enums.RoleCourier {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only couriers can pick up orders")
		}
		return svc.PickUp(ctx, orderID, actor.UserID)
	})
}

func Deliver(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor, _ *http.Request) (any, error) {
		return svc.Deliver(ctx, orderID, actor)
	})
}

// Cancel cancels the order and reports the refund that went with it.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor, r *http.Request) (any, error) {
		var payload cancelRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				return nil, err
			}
		}
		return svc.Cancel(ctx, orderID, actor, validators.SanitizeString(payload.Reason, 500))
	})
}

func Rate(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor, r *http.Request) (any, error) {
		if actor.Role != enums.RoleCustomer {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only customers can rate orders")
		}
		var payload ratingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.Rate(ctx, orderID, actor.UserID, internalorders.RatingInput{Ratings: payload.Ratings})
	})
}

type orderAction func(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor, r *http.Request) (any, error)

// transition resolves the caller and the order id, then runs action.
func transition(svc internalorders.Service, logg *logger.Logger, action orderAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := resolveActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.URLParamUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
		}

		result, err := action(ctx, orderID, actor, r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func resolveActor(r *http.Request) (internalorders.Actor, error) {
	userID, role, err := caller.Resolve(r)
	if err != nil {
		return internalorders.Actor{}, err
	}
	return internalorders.Actor{UserID: userID, Role: role}, nil
}
