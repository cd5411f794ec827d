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

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/slotbook-backend/api/responses"
	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
	"github.com/angelmondragon/slotbook-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/slotbook-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	// pendingIdempotencyTTL bounds how long a crashed request keeps its key
	// claimed.
	pendingIdempotencyTTL = time.Minute
)

// idempotentRoutes maps "METHOD pattern" to how long a completed response
// is replayed. Payment signals and cancellations keep their keys longest
// because providers retry them for days.
var idempotentRoutes = map[string]time.Duration{
	http.MethodPost + " /api/admin/v1/orders/{orderId}/status":                   defaultIdempotencyTTL,
	http.MethodPost + " /api/admin/v1/inventory/{productId}/{variantKey}/adjust": defaultIdempotencyTTL,
	http.MethodPost + " /api/admin/v1/orders/{orderId}/confirm-payment":          criticalIdempotencyTTL,
	http.MethodPost + " /api/admin/v1/orders/{orderId}/cancel":                   criticalIdempotencyTTL,
}

type idempotencyState string

const (
	statePending   idempotencyState = "pending"
	stateCompleted idempotencyState = "completed"
)

type idempotencyRecord struct {
	State       idempotencyState `json:"state"`
	RequestHash string           `json:"request_hash"`
	Status      int              `json:"status,omitempty"`
	ContentType string           `json:"content_type,omitempty"`
	Body        []byte           `json:"body,omitempty"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key on
// the routes listed in idempotentRoutes. The key is claimed before the
// handler runs, so a concurrent duplicate is rejected instead of executed
// twice. Server errors release the claim and the caller may retry.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	g := &idempotencyGuard{store: store, logg: logg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pattern := routePattern(r)
			ttl, ok := routeTTL(r.Method, pattern)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			g.serve(w, r, next, pattern, ttl)
		})
	}
}

type idempotencyGuard struct {
	store pkgredis.IdempotencyStore
	logg  *logger.Logger
}

func (g *idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler, pattern string, ttl time.Duration) {
	ctx := r.Context()
	fail := func(err error) { responses.WriteError(ctx, g.logg, w, err) }

	header := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if header == "" {
		fail(pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		fail(pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	sum := sha256.Sum256(body)
	requestHash := hex.EncodeToString(sum[:])
	key := g.store.IdempotencyKey(buildScope(r, pattern), header)

	existing, claimed, err := g.acquire(ctx, key, requestHash)
	switch {
	case err != nil:
		fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire idempotency key"))
		return
	case existing != nil:
		replayOrReject(ctx, g.logg, w, existing, requestHash)
		return
	case !claimed:
		// an identical request claimed the key between our read and SETNX
		fail(inProgressError())
		return
	}

	rec := &responseCapture{ResponseWriter: w}
	next.ServeHTTP(rec, r)
	g.remember(ctx, key, requestHash, rec, ttl)
}

// acquire returns the stored record for key, or claims the key with a
// pending record when none exists.
func (g *idempotencyGuard) acquire(ctx context.Context, key, requestHash string) (*idempotencyRecord, bool, error) {
	stored, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, false, err
	case stored != "":
		var record idempotencyRecord
		if err := json.Unmarshal([]byte(stored), &record); err != nil {
			return nil, false, err
		}
		return &record, false, nil
	}

	pending, err := json.Marshal(idempotencyRecord{State: statePending, RequestHash: requestHash})
	if err != nil {
		return nil, false, err
	}
	claimed, err := g.store.SetNX(ctx, key, string(pending), pendingIdempotencyTTL)
	return nil, claimed, err
}

// remember stores a completed response for replay, or releases the claim
// when the handler failed with a server error.
func (g *idempotencyGuard) remember(ctx context.Context, key, requestHash string, rec *responseCapture, ttl time.Duration) {
	status := rec.status
	if status == 0 {
		status = http.StatusOK
	}
	if status >= http.StatusInternalServerError {
		if err := g.store.Del(ctx, key); err != nil {
			g.logError(ctx, "release idempotency key", err)
		}
		return
	}

	payload, err := json.Marshal(idempotencyRecord{
		State:       stateCompleted,
		RequestHash: requestHash,
		Status:      status,
		ContentType: rec.Header().Get("Content-Type"),
		Body:        rec.body.Bytes(),
	})
	if err != nil {
		g.logError(ctx, "marshal idempotency record", err)
		return
	}
	if err := g.store.Set(ctx, key, string(payload), ttl); err != nil {
		g.logError(ctx, "persist idempotency record", err)
	}
}

func (g *idempotencyGuard) logError(ctx context.Context, msg string, err error) {
	if g.logg != nil {
		g.logg.Error(ctx, msg, err)
	}
}

func replayOrReject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, record *idempotencyRecord, requestHash string) {
	switch {
	case record.RequestHash != requestHash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case record.State != stateCompleted:
		responses.WriteError(ctx, logg, w, inProgressError())
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set("Idempotent-Replay", "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(record.Body)
	}
}

func inProgressError() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "a request with this idempotency key is still in progress")
}

// buildScope keys records by caller and concrete resource, so the same key
// sent by another caller or for another order never collides.
func buildScope(r *http.Request, pattern string) string {
	return strings.Join([]string{
		SubjectFromContext(r.Context()),
		r.Method,
		pattern,
		r.URL.Path,
	}, "|")
}

func routePattern(r *http.Request) string {
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		if pattern := ctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	ttl, ok := idempotentRoutes[method+" "+pattern]
	return ttl, ok
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
