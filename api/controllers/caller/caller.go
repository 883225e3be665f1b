package caller

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodrun-backend/api/middleware"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
)

// Resolve returns the authenticated user id and role seeded by the auth middleware.
func Resolve(r *http.Request) (uuid.UUID, enums.Role, error) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok || p.UserID == uuid.Nil {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	if !p.Role.IsValid() {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeForbidden, "role missing")
	}
	return p.UserID, p.Role, nil
}
