package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/shiftledger/api/responses"
	pkgerrors "github.com/angelmondragon/shiftledger/pkg/errors"
	"github.com/angelmondragon/shiftledger/pkg/logger"
	pkgredis "github.com/angelmondragon/shiftledger/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	maxIdempotencyKey = 255

	shortReplayWindow = 24 * time.Hour
	// Closing and terminating settle money, so their keys live longer.
	settlementReplayWindow = 7 * 24 * time.Hour
	inFlightTTL            = time.Minute
)

// replayRoute is a POST endpoint whose responses are replayed for a repeated
// Idempotency-Key. Path segments written as {name} match any single segment.
type replayRoute struct {
	template []string
	window   time.Duration
}

var replayRoutes = []replayRoute{
	route("/api/v1/shifts", shortReplayWindow),
	route("/api/v1/shifts/{shiftId}/movements", shortReplayWindow),
	route("/api/v1/shifts/{shiftId}/close", settlementReplayWindow),
	route("/api/admin/v1/shifts/{shiftId}/terminate", settlementReplayWindow),
	route("/api/admin/v1/outbox/dlq/{eventId}/replay", shortReplayWindow),
}

func route(template string, window time.Duration) replayRoute {
	return replayRoute{template: pathSegments(template), window: window}
}

func (rr replayRoute) matches(segments []string) bool {
	if len(segments) != len(rr.template) {
		return false
	}
	for i, want := range rr.template {
		if strings.HasPrefix(want, "{") {
			if segments[i] == "" {
				return false
			}
			continue
		}
		if segments[i] != want {
			return false
		}
	}
	return true
}

func pathSegments(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

// replayWindow reports how long responses for method+path are kept.
func replayWindow(method, path string) (time.Duration, bool) {
	if method != http.MethodPost {
		return 0, false
	}
	segments := pathSegments(path)
	for _, rr := range replayRoutes {
		if rr.matches(segments) {
			return rr.window, true
		}
	}
	return 0, false
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	BodyHash    string `json:"body_hash"`
}

// Idempotency replays the first response seen for an Idempotency-Key on
// mutating shift routes. Keys are scoped to user, store and path. A second
// request arriving while the first is still running gets a conflict. Server
// errors are not stored so the client can retry them.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			window, ok := replayWindow(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			switch {
			case key == "":
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			case len(key) > maxIdempotencyKey:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			bodyHash := digest(body)

			scope := strings.Join([]string{UserIDFromContext(ctx), StoreIDFromContext(ctx), r.URL.Path}, "|")
			responseKey := store.IdempotencyKey(scope, key)
			lockKey := store.IdempotencyKey(scope+"|inflight", key)

			raw, err := store.Get(ctx, responseKey)
			if err != nil && !errors.Is(err, redis.Nil) {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if raw != "" {
				var prev storedResponse
				if err := json.Unmarshal([]byte(raw), &prev); err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
					return
				}
				if prev.BodyHash != bodyHash {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				replay(w, prev)
				return
			}

			acquired, err := store.SetNX(ctx, lockKey, bodyHash, inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !acquired {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "a request with this Idempotency-Key is still in progress"))
				return
			}
			defer func() {
				if err := store.Del(ctx, lockKey); err != nil && logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{"error": err.Error()}), "idempotency.release_failed")
				}
			}()

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusCode()
			if status >= http.StatusInternalServerError {
				return
			}
			payload, err := json.Marshal(storedResponse{
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				BodyHash:    bodyHash,
			})
			if err == nil {
				_, err = store.SetNX(ctx, responseKey, string(payload), window)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "idempotency.store_failed", err)
			}
		})
	}
}

func replay(w http.ResponseWriter, prev storedResponse) {
	if prev.ContentType != "" {
		w.Header().Set("Content-Type", prev.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(prev.Status)
	_, _ = w.Write(prev.Body)
}

func digest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
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
