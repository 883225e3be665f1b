package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/foodrun-backend/api/middleware"
	internalorders "github.com/angelmondragon/foodrun-backend/internal/orders"
	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/angelmondragon/foodrun-backend/pkg/pagination"
)

type stubOrdersService struct {
	internalorders.Service

	created  *internalorders.CreateInput
	assigned uuid.UUID
	reason   string
	cancel   func() (*internalorders.CancelResult, error)
	listed   *enums.OrderStatus
}

func (s *stubOrdersService) Create(_ context.Context, input internalorders.CreateInput) (*models.Order, error) {
	s.created = &input
	return &models.Order{ID: uuid.New(), CustomerID: input.CustomerID, RestaurantID: input.RestaurantID}, nil
}

func (s *stubOrdersService) AssignCourier(_ context.Context, orderID, courierID uuid.UUID) (*models.Order, error) {
	s.assigned = courierID
	return &models.Order{ID: orderID, CourierID: &courierID}, nil
}

func (s *stubOrdersService) Cancel(_ context.Context, orderID uuid.UUID, _ internalorders.Actor, reason string) (*internalorders.CancelResult, error) {
	s.reason = reason
	if s.cancel != nil {
		return s.cancel()
	}
	return &internalorders.CancelResult{Order: &models.Order{ID: orderID}}, nil
}

func (s *stubOrdersService) ListForActor(_ context.Context, _ internalorders.Actor, status *enums.OrderStatus, _ pagination.Params) (*internalorders.OrderList, error) {
	s.listed = status
	return &internalorders.OrderList{}, nil
}

func newRouter(svc internalorders.Service) http.Handler {
	r := chi.NewRouter()
	r.Post("/orders", Create(svc, nil))
	r.Get("/orders", List(svc, nil))
	r.Get("/orders/{orderId}", Detail(svc, nil))
	r.Post("/orders/{orderId}/assign", AssignCourier(svc, nil))
	r.Post("/orders/{orderId}/cancel", Cancel(svc, nil))
	return r
}

func authed(req *http.Request, userID uuid.UUID, role enums.Role) *http.Request {
	ctx := middleware.WithPrincipal(req.Context(), middleware.Principal{UserID: userID, Role: role})
	return req.WithContext(ctx)
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return payload.Error.Code
}

func TestCreateUsesCallerAsCustomer(t *testing.T) {
	svc := &stubOrdersService{}
	customerID := uuid.New()
	restaurantID := uuid.New()
	body := `{"restaurant_id":"` + restaurantID.String() + `","delivery_type":"pickup","payment_method":"cash",` +
		`"items":[{"product_id":"` + uuid.NewString() + `","owner_id":"` + restaurantID.String() + `","name":"Shawarma","quantity":2,"price_cents":1500}]}`

	req := authed(httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body)), customerID, enums.RoleCustomer)
	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.created == nil || svc.created.CustomerID != customerID {
		t.Fatalf("expected customer id from token, got %+v", svc.created)
	}
	if svc.created.DeliveryType != enums.DeliveryTypePickup || svc.created.PaymentMethod != enums.PaymentMethodCash {
		t.Fatalf("unexpected parsed enums %+v", svc.created)
	}
}

func TestCreateRejectsInvalidBody(t *testing.T) {
	svc := &stubOrdersService{}
	body := `{"restaurant_id":"` + uuid.NewString() + `","delivery_type":"drone","payment_method":"cash","items":[]}`

	req := authed(httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body)), uuid.New(), enums.RoleCustomer)
	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.created != nil {
		t.Fatalf("service should not be called")
	}
}

func TestCreateRequiresAuthenticatedCaller(t *testing.T) {
	resp := httptest.NewRecorder()
	newRouter(&stubOrdersService{}).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{}`)))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestDetailRejectsMalformedOrderID(t *testing.T) {
	req := authed(httptest.NewRequest(http.MethodGet, "/orders/not-a-uuid", nil), uuid.New(), enums.RoleCustomer)
	resp := httptest.NewRecorder()
	newRouter(&stubOrdersService{}).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAssignCourierRequiresCourierRole(t *testing.T) {
	svc := &stubOrdersService{}
	orderID := uuid.New()

	req := authed(httptest.NewRequest(http.MethodPost, "/orders/"+orderID.String()+"/assign", nil), uuid.New(), enums.RoleCustomer)
	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}

	courierID := uuid.New()
	req = authed(httptest.NewRequest(http.MethodPost, "/orders/"+orderID.String()+"/assign", nil), courierID, enums.RoleCourier)
	resp = httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.assigned != courierID {
		t.Fatalf("expected courier %s assigned, got %s", courierID, svc.assigned)
	}
}

func TestCancelAcceptsEmptyBodyAndMapsErrors(t *testing.T) {
	svc := &stubOrdersService{}
	orderID := uuid.New()

	req := authed(httptest.NewRequest(http.MethodPost, "/orders/"+orderID.String()+"/cancel", nil), uuid.New(), enums.RoleCustomer)
	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	svc.cancel = func() (*internalorders.CancelResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order already picked up")
	}
	req = authed(httptest.NewRequest(http.MethodPost, "/orders/"+orderID.String()+"/cancel", strings.NewReader(`{"reason":"  changed my mind  "}`)), uuid.New(), enums.RoleCustomer)
	resp = httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != string(pkgerrors.CodeStateConflict) {
		t.Fatalf("unexpected code %s", code)
	}
	if svc.reason != "changed my mind" {
		t.Fatalf("expected sanitized reason, got %q", svc.reason)
	}
}

func TestListParsesStatusFilter(t *testing.T) {
	svc := &stubOrdersService{}

	req := authed(httptest.NewRequest(http.MethodGet, "/orders?status=ready&limit=10", nil), uuid.New(), enums.RoleRestaurant)
	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.listed == nil || *svc.listed != enums.OrderStatusReady {
		t.Fatalf("expected ready filter, got %v", svc.listed)
	}

	req = authed(httptest.NewRequest(http.MethodGet, "/orders?status=teleported", nil), uuid.New(), enums.RoleRestaurant)
	resp = httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
