package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/angelmondragon/foodrun-backend/pkg/logger"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var env ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return env.Error
}

func TestWriteSuccessStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]int64{"totalCents": 5500})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if got := w.Body.String(); strings.TrimSpace(got) != `{"data":{"totalCents":5500}}` {
		t.Fatalf("body = %s", got)
	}
}

func TestWriteErrorKeepsClientMessageAndDetails(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeStateConflict, "order is not ready").
		WithDetails(map[string]string{"status": "preparing"})
	WriteError(context.Background(), nil, w, err)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	body := decodeError(t, w)
	if body.Code != string(pkgerrors.CodeStateConflict) || body.Message != "order is not ready" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Details == nil {
		t.Fatal("expected details for a state conflict")
	}
}

func TestWriteErrorHidesServerSideText(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, errors.New("pq: connection refused to 10.0.0.3"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	body := decodeError(t, w)
	if body.Code != string(pkgerrors.CodeInternal) || body.Message != "internal server error" || body.Details != nil {
		t.Fatalf("leaked internals: %+v", body)
	}
}

func TestWriteErrorAdvertisesRetryAfterOnDependencyFailure(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("redis timeout"), "idempotency store unavailable"))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if w.Header().Get("Retry-After") != retryAfterSeconds {
		t.Fatalf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
	if body := decodeError(t, w); body.Message != "dependency unavailable" {
		t.Fatalf("message = %q", body.Message)
	}
}

func TestWriteErrorLogsClientErrorsAtWarn(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	WriteError(context.Background(), logg, httptest.NewRecorder(), pkgerrors.New(pkgerrors.CodeForbidden, "not your order"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["level"] != "warn" || line["message"] != "request rejected" {
		t.Fatalf("unexpected log line %v", line)
	}
	if line["status"] != float64(http.StatusForbidden) {
		t.Fatalf("status field = %v", line["status"])
	}
}
