package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/harvestdesk/farmops-backend/api/responses"
	pkgerrors "github.com/harvestdesk/farmops-backend/pkg/errors"
	"github.com/harvestdesk/farmops-backend/pkg/logger"
	pkgredis "github.com/harvestdesk/farmops-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayHeader      = "Idempotent-Replay"

	defaultIdempotencyTTL = 24 * time.Hour
	// A lost response on a stock write means the client may move stock twice
	// on retry, so those responses are kept for a week.
	ledgerIdempotencyTTL = 7 * 24 * time.Hour
)

// ResponseStore keeps responses for replay. *redis.Client implements it.
type ResponseStore interface {
	ResponseKey(method, path, clientKey string) string
	LoadResponse(ctx context.Context, key string) (*pkgredis.StoredResponse, error)
	SaveResponse(ctx context.Context, key string, resp pkgredis.StoredResponse, ttl time.Duration) (bool, error)
}

type writeRoute struct {
	method string
	prefix string
	suffix string
	exact  bool
	ledger bool
}

func (w writeRoute) matches(method, pattern string) bool {
	if w.method != method {
		return false
	}
	if w.exact {
		return pattern == w.prefix
	}
	return strings.HasPrefix(pattern, w.prefix) && strings.HasSuffix(pattern, w.suffix)
}

var replayableWrites = []writeRoute{
	{method: http.MethodPost, prefix: "/api/inventory-move", exact: true, ledger: true},
	{method: http.MethodPost, prefix: "/api/inventory-consume", exact: true, ledger: true},
	{method: http.MethodPost, prefix: "/api/orders/", suffix: "/pick", ledger: true},
	{method: http.MethodPost, prefix: "/api/inventory", exact: true},
	{method: http.MethodPost, prefix: "/api/locations", exact: true},
	{method: http.MethodPost, prefix: "/api/orders", exact: true},
	{method: http.MethodPut, prefix: "/api/orders/"},
	{method: http.MethodPost, prefix: "/api/customers", exact: true},
	{method: http.MethodPut, prefix: "/api/customers/"},
	{method: http.MethodPost, prefix: "/api/customers/segmentation/apply", exact: true},
	{method: http.MethodPost, prefix: "/api/production-logs", exact: true},
}

// Idempotency replays the stored response when a write is retried with the
// same Idempotency-Key. Requests without the header run normally, so the
// ledger keeps its plain non-idempotent semantics unless a client opts in.
// ttl overrides the default window for non-ledger routes.
func Idempotency(store ResponseStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return func(next http.Handler) http.Handler {
		return &replayGuard{store: store, ttl: ttl, logg: logg, next: next}
	}
}

type replayGuard struct {
	store ResponseStore
	ttl   time.Duration
	logg  *logger.Logger
	next  http.Handler
}

func (g *replayGuard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if clientKey == "" || g.store == nil {
		g.next.ServeHTTP(w, r)
		return
	}
	window, ok := routeTTL(r.Method, routePattern(r), g.ttl)
	if !ok {
		g.next.ServeHTTP(w, r)
		return
	}

	ctx := g.logg.WithField(r.Context(), "idempotency_key", clientKey)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		responses.WriteError(ctx, g.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "request body could not be read"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	fingerprint := fingerprintBody(body)
	key := g.store.ResponseKey(r.Method, r.URL.Path, clientKey)

	stored, err := g.store.LoadResponse(ctx, key)
	switch {
	case errors.Is(err, pkgredis.ErrNoResponse):
	case err != nil:
		responses.WriteError(ctx, g.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	case stored.Fingerprint != fingerprint:
		responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	default:
		g.logg.Info(ctx, "idempotency.replay")
		replay(w, stored)
		return
	}

	var captured bytes.Buffer
	ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
	ww.Tee(&captured)
	g.next.ServeHTTP(ww, r)

	// A 5xx, a store timeout included, never counts as committed; the client
	// must be able to retry it.
	status := statusOf(ww)
	if status >= http.StatusInternalServerError {
		return
	}
	_, err = g.store.SaveResponse(ctx, key, pkgredis.StoredResponse{
		Status:      status,
		ContentType: ww.Header().Get("Content-Type"),
		Body:        captured.Bytes(),
		Fingerprint: fingerprint,
	}, window)
	if err != nil {
		g.logg.Error(ctx, "persist idempotency record", err)
	}
}

func replay(w http.ResponseWriter, stored *pkgredis.StoredResponse) {
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(replayHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

func fingerprintBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		// Mid-routing the pattern is still a wildcard mount like /api/*.
		if pattern := rc.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			return pattern
		}
	}
	return r.URL.Path
}

// routeTTL reports how long a response of this route is kept, and whether
// the route takes part in replay at all.
func routeTTL(method, pattern string, fallback time.Duration) (time.Duration, bool) {
	if pattern == "" {
		return 0, false
	}
	if fallback <= 0 {
		fallback = defaultIdempotencyTTL
	}
	for _, route := range replayableWrites {
		if !route.matches(method, pattern) {
			continue
		}
		if route.ledger {
			return ledgerIdempotencyTTL, true
		}
		return fallback, true
	}
	return 0, false
}
