package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/foodrun-backend/api/responses"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/angelmondragon/foodrun-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/foodrun-backend/pkg/redis"
)

const (
	// IdempotencyHeader carries the client supplied request key.
	IdempotencyHeader = "Idempotency-Key"
	// ReplayedHeader marks a response served from the replay cache.
	ReplayedHeader = "Idempotent-Replayed"

	defaultIdempotencyTTL = 24 * time.Hour
	moneyIdempotencyTTL   = 7 * 24 * time.Hour
	maxIdempotencyKeyLen  = 128
)

type replayRoute struct {
	prefix string
	suffix string
	exact  bool
	money  bool
}

func (r replayRoute) matches(path string) bool {
	if r.exact {
		return path == r.prefix
	}
	return strings.HasPrefix(path, r.prefix) && strings.HasSuffix(path, r.suffix)
}

// First match wins. Routes that create orders or move wallet and points
// balances keep their keys for a week.
var replayRoutes = []replayRoute{
	{prefix: "/api/v1/orders", exact: true, money: true},
	{prefix: "/api/v1/orders/", suffix: "/cancel", money: true},
	{prefix: "/api/v1/wallets/me/withdrawals", exact: true, money: true},
	{prefix: "/api/v1/admin/points/deductions", exact: true, money: true},
	{prefix: "/api/v1/orders/"},
	{prefix: "/api/v1/admin/"},
}

type replayState string

const (
	stateInFlight replayState = "in_flight"
	stateDone     replayState = "done"
)

type replayRecord struct {
	State       replayState `json:"state"`
	RequestHash string      `json:"request_hash"`
	Status      int         `json:"status,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	Body        []byte      `json:"body,omitempty"`
}

// Idempotency makes mutating routes safe to retry. The key is reserved
// before the handler runs so a concurrent duplicate is rejected instead of
// executing twice; the final response then replaces the reservation.
// Server faults release the key so the client can retry with it.
func Idempotency(store pkgredis.ResponseStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keyTTL, ok := routeTTL(r.Method, r.URL.Path, ttl)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if clientKey == "" || len(clientKey) > maxIdempotencyKeyLen {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required (max 128 characters)"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := hashRequest(body)
			principal, _ := PrincipalFrom(ctx)
			key := store.IdempotencyKey(principal.UserID.String()+"|"+r.Method+"|"+r.URL.Path, clientKey)

			reservation, _ := json.Marshal(replayRecord{State: stateInFlight, RequestHash: hash})
			reserved, err := store.SetNX(ctx, key, string(reservation), keyTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replayExisting(ctx, w, store, key, hash, logg)
				return
			}

			released := false
			release := func() {
				if released {
					return
				}
				released = true
				if err := store.Del(context.WithoutCancel(ctx), key); err != nil {
					logError(ctx, logg, "release idempotency key", err)
				}
			}
			defer func() {
				if p := recover(); p != nil {
					release()
					panic(p)
				}
			}()

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusCode()
			if status >= http.StatusInternalServerError {
				release()
				return
			}
			final, err := json.Marshal(replayRecord{
				State:       stateDone,
				RequestHash: hash,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if err != nil {
				logError(ctx, logg, "encode idempotency record", err)
				release()
				return
			}
			if err := store.Set(context.WithoutCancel(ctx), key, string(final), keyTTL); err != nil {
				logError(ctx, logg, "store idempotency record", err)
			}
		})
	}
}

func replayExisting(ctx context.Context, w http.ResponseWriter, store pkgredis.ResponseStore, key, hash string, logg *logger.Logger) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// The holder released the key between our reserve and read.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConcurrency, "request with this Idempotency-Key is being retried, try again"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record"))
		return
	}

	var record replayRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode idempotency record"))
		return
	}
	if record.RequestHash != hash {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	if record.State != stateDone {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConcurrency, "request with this Idempotency-Key is still in progress"))
		return
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "replay", true), "idempotent response replayed")
	}
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write(record.Body)
}

func hashRequest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func routeTTL(method, path string, base time.Duration) (time.Duration, bool) {
	if method != http.MethodPost || path == "" {
		return 0, false
	}
	if base <= 0 {
		base = defaultIdempotencyTTL
	}
	for _, route := range replayRoutes {
		if !route.matches(path) {
			continue
		}
		if route.money && moneyIdempotencyTTL > base {
			return moneyIdempotencyTTL, true
		}
		return base, true
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
