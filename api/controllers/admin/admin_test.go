package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/foodrun-backend/api/middleware"
	internalpoints "github.com/angelmondragon/foodrun-backend/internal/points"
	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
)

type stubReferrals struct {
	registered map[uuid.UUID]uuid.UUID
}

func (s *stubReferrals) Register(_ context.Context, restaurantID, adminID uuid.UUID) (*models.RestaurantReferral, error) {
	if s.registered == nil {
		s.registered = map[uuid.UUID]uuid.UUID{}
	}
	s.registered[restaurantID] = adminID
	return &models.RestaurantReferral{RestaurantID: restaurantID, AdminID: adminID}, nil
}

func (s *stubReferrals) ReferrerFor(_ context.Context, restaurantID uuid.UUID) (*uuid.UUID, error) {
	id, ok := s.registered[restaurantID]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

type stubPoints struct {
	internalpoints.Service
	input *internalpoints.DeductInput
}

func (s *stubPoints) DeductPoints(_ context.Context, input internalpoints.DeductInput) (*internalpoints.DeductResult, error) {
	s.input = &input
	return &internalpoints.DeductResult{Success: true, Applied: input.Amount, NewBalance: 100 - input.Amount}, nil
}

func authed(req *http.Request, userID uuid.UUID, role enums.Role) *http.Request {
	return req.WithContext(middleware.WithPrincipal(req.Context(), middleware.Principal{UserID: userID, Role: role}))
}

func referralRouter(repo *stubReferrals) http.Handler {
	r := chi.NewRouter()
	r.Post("/admin/restaurants/{restaurantId}/referral", RegisterReferral(repo, nil))
	return r
}

func TestRegisterReferralDefaultsToCaller(t *testing.T) {
	repo := &stubReferrals{}
	adminID := uuid.New()
	restaurantID := uuid.New()

	req := authed(httptest.NewRequest(http.MethodPost, "/admin/restaurants/"+restaurantID.String()+"/referral", nil), adminID, enums.RoleAdmin)
	resp := httptest.NewRecorder()
	referralRouter(repo).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if repo.registered[restaurantID] != adminID {
		t.Fatalf("expected referral by caller")
	}
}

func TestRegisterReferralOnBehalfRequiresSupervisor(t *testing.T) {
	repo := &stubReferrals{}
	restaurantID := uuid.New()
	otherAdmin := uuid.New()
	body := `{"admin_id":"` + otherAdmin.String() + `"}`
	path := "/admin/restaurants/" + restaurantID.String() + "/referral"

	resp := httptest.NewRecorder()
	referralRouter(repo).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)), uuid.New(), enums.RoleAdmin))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	referralRouter(repo).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)), uuid.New(), enums.RoleSupervisor))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if repo.registered[restaurantID] != otherAdmin {
		t.Fatalf("expected referral for named admin")
	}
}

func TestDeductPointsCarriesStaffIdentity(t *testing.T) {
	svc := &stubPoints{}
	staffID := uuid.New()
	ticketID := uuid.New()
	body := `{"owner_type":"courier","owner_id":"` + uuid.NewString() + `","amount":15,"reason":" Late delivery ","ticket_id":"` + ticketID.String() + `"}`

	resp := httptest.NewRecorder()
	DeductPoints(svc, nil)(resp, authed(httptest.NewRequest(http.MethodPost, "/admin/points/deductions", strings.NewReader(body)), staffID, enums.RoleSupport))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.input.AdminID != staffID || svc.input.AdminRole != enums.RoleSupport {
		t.Fatalf("expected staff identity, got %+v", svc.input)
	}
	if svc.input.OwnerType != enums.PointsOwnerCourier || svc.input.Reason != "Late delivery" {
		t.Fatalf("unexpected input %+v", svc.input)
	}
	if svc.input.TicketID == nil || *svc.input.TicketID != ticketID {
		t.Fatalf("expected ticket id")
	}
}

func TestDeductPointsRejectsCustomers(t *testing.T) {
	svc := &stubPoints{}
	body := `{"owner_type":"customer","owner_id":"` + uuid.NewString() + `","amount":15,"reason":"x"}`

	resp := httptest.NewRecorder()
	DeductPoints(svc, nil)(resp, authed(httptest.NewRequest(http.MethodPost, "/admin/points/deductions", strings.NewReader(body)), uuid.New(), enums.RoleAdmin))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.input != nil {
		t.Fatalf("service should not be called")
	}
}
