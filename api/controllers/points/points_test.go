package points

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/foodrun-backend/api/middleware"
	internalpoints "github.com/angelmondragon/foodrun-backend/internal/points"
	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
)

type stubPoints struct {
	internalpoints.Service
	calls int
}

func (s *stubPoints) GetAccount(_ context.Context, ownerType enums.PointsOwnerType, ownerID uuid.UUID) (*models.PointsAccount, error) {
	s.calls++
	return &models.PointsAccount{OwnerType: ownerType, OwnerID: ownerID, Points: 100}, nil
}

func router(svc internalpoints.Service) http.Handler {
	r := chi.NewRouter()
	r.Get("/points/{ownerType}/{ownerId}", Account(svc, nil))
	return r
}

func get(t *testing.T, svc internalpoints.Service, path string, userID uuid.UUID, role enums.Role) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(middleware.WithPrincipal(req.Context(), middleware.Principal{UserID: userID, Role: role}))
	resp := httptest.NewRecorder()
	router(svc).ServeHTTP(resp, req)
	return resp.Code
}

func TestAccountAccess(t *testing.T) {
	courierID := uuid.New()
	path := "/points/courier/" + courierID.String()

	cases := []struct {
		name   string
		userID uuid.UUID
		role   enums.Role
		want   int
	}{
		{"owner", courierID, enums.RoleCourier, http.StatusOK},
		{"staff", uuid.New(), enums.RoleSupport, http.StatusOK},
		{"other courier", uuid.New(), enums.RoleCourier, http.StatusForbidden},
		{"same id wrong kind", courierID, enums.RoleRestaurant, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := get(t, &stubPoints{}, path, tc.userID, tc.role); got != tc.want {
				t.Fatalf("expected %d got %d", tc.want, got)
			}
		})
	}
}

func TestAccountRejectsUnknownOwnerType(t *testing.T) {
	svc := &stubPoints{}
	if got := get(t, svc, "/points/customer/"+uuid.NewString(), uuid.New(), enums.RoleAdmin); got != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", got)
	}
	if svc.calls != 0 {
		t.Fatalf("service should not be called")
	}
}
