package points

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/foodrun-backend/api/controllers/caller"
	"github.com/angelmondragon/foodrun-backend/api/responses"
	"github.com/angelmondragon/foodrun-backend/api/validators"
	internalpoints "github.com/angelmondragon/foodrun-backend/internal/points"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/angelmondragon/foodrun-backend/pkg/logger"
	"github.com/angelmondragon/foodrun-backend/pkg/pagination"
)

// Account returns a restaurant's or courier's points balance. Owners may
// read their own account; staff may read any.
func Account(svc internalpoints.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerType, ownerID, err := resolveAccount(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		account, err := svc.GetAccount(r.Context(), ownerType, ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, account)
	}
}

// History pages through the deductions applied to an account.
func History(svc internalpoints.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerType, ownerID, err := resolveAccount(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.History(r.Context(), ownerType, ownerID, pagination.Params{
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

func resolveAccount(r *http.Request, svc internalpoints.Service) (enums.PointsOwnerType, uuid.UUID, error) {
	if svc == nil {
		return "", uuid.Nil, pkgerrors.New(pkgerrors.CodeInternal, "points service unavailable")
	}
	userID, role, err := caller.Resolve(r)
	if err != nil {
		return "", uuid.Nil, err
	}
	ownerType, err := enums.ParsePointsOwnerType(strings.TrimSpace(chi.URLParam(r, "ownerType")))
	if err != nil {
		return "", uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid owner type")
	}
	ownerID, err := validators.URLParamUUID(r, "ownerId")
	if err != nil {
		return "", uuid.Nil, err
	}
	if role.IsStaff() {
		return ownerType, ownerID, nil
	}
	if string(role) != string(ownerType) || userID != ownerID {
		return "", uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "points account belongs to another owner")
	}
	return ownerType, ownerID, nil
}
