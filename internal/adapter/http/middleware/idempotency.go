package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iho/stockledger/internal/usecase"
)

const (
	// IdempotencyKeyHeader is the header name for idempotency keys.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotencyReplayHeader marks a response served from the store.
	IdempotencyReplayHeader = "X-Idempotency-Replay"
)

// storedResponse is what gets saved under an idempotency key. While the
// first request runs only Fingerprint is set.
type storedResponse struct {
	Status      int             `json:"status"`
	Body        json.RawMessage `json:"body,omitempty"`
	Fingerprint string          `json:"fingerprint,omitempty"`
}

// IdempotencyMiddleware handles request idempotency using Redis.
type IdempotencyMiddleware struct {
	store usecase.IdempotencyStore
	ttl   time.Duration
}

// NewIdempotencyMiddleware creates a new IdempotencyMiddleware. A zero ttl
// falls back to usecase.IdempotencyKeyTTL.
func NewIdempotencyMiddleware(store usecase.IdempotencyStore, ttl time.Duration) *IdempotencyMiddleware {
	if ttl <= 0 {
		ttl = usecase.IdempotencyKeyTTL
	}
	return &IdempotencyMiddleware{store: store, ttl: ttl}
}

// Wrap wraps an http.Handler with idempotency checking.
func (m *IdempotencyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only apply to mutating requests
		if r.Method != http.MethodPost && r.Method != http.MethodPut {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(IdempotencyKeyHeader)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		// Keys are per caller so two users cannot collide.
		if actor, ok := ActorFromContext(r.Context()); ok {
			key = actor + ":" + key
		}

		fingerprint, err := requestFingerprint(r)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		claim, err := json.Marshal(storedResponse{Fingerprint: fingerprint})
		if err != nil {
			http.Error(w, "idempotency check failed", http.StatusInternalServerError)
			return
		}

		exists, cached, err := m.store.CheckAndSet(r.Context(), key, claim, m.ttl)
		if err != nil {
			log.Error().Err(err).Str("idempotency_key", key).Msg("idempotency check failed")
			http.Error(w, "idempotency check failed", http.StatusInternalServerError)
			return
		}

		if exists {
			var stored storedResponse
			if cached == nil || json.Unmarshal(cached, &stored) != nil {
				http.Error(w, "request with this idempotency key is in progress", http.StatusConflict)
				return
			}
			if stored.Fingerprint != "" && stored.Fingerprint != fingerprint {
				http.Error(w, "idempotency key was used for a different request", http.StatusUnprocessableEntity)
				return
			}
			if stored.Status == 0 {
				http.Error(w, "request with this idempotency key is in progress", http.StatusConflict)
				return
			}

			w.Header().Set(IdempotencyReplayHeader, "true")
			if len(stored.Body) > 0 {
				w.Header().Set("Content-Type", "application/json")
			}
			w.WriteHeader(stored.Status)
			w.Write(stored.Body)
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: w,
			body:           &bytes.Buffer{},
			statusCode:     http.StatusOK,
		}

		defer func() {
			panicked := recover()

			// The request context may already be canceled by now.
			ctx := context.WithoutCancel(r.Context())

			if panicked != nil || recorder.statusCode < 200 || recorder.statusCode >= 300 {
				// Failed requests may be retried with the same key.
				if err := m.store.Delete(ctx, key); err != nil {
					log.Warn().Err(err).Str("idempotency_key", key).Msg("failed to release idempotency key")
				}
				if panicked != nil {
					panic(panicked)
				}
				return
			}

			payload, err := json.Marshal(storedResponse{
				Status:      recorder.statusCode,
				Body:        rawBody(recorder.body.Bytes()),
				Fingerprint: fingerprint,
			})
			if err == nil {
				err = m.store.Update(ctx, key, payload, m.ttl)
			}
			if err != nil {
				log.Warn().Err(err).Str("idempotency_key", key).Msg("failed to store idempotent response")
			}
		}()

		next.ServeHTTP(recorder, r)
	})
}

// requestFingerprint hashes the method, path and body of r and leaves the
// body readable for the next handler.
func requestFingerprint(r *http.Request) (string, error) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return "", err
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{0})
	h.Write([]byte(r.URL.Path))
	h.Write([]byte{0})
	h.Write(bytes.TrimSpace(body))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// rawBody returns b when it is valid JSON, nil otherwise.
func rawBody(b []byte) json.RawMessage {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || !json.Valid(b) {
		return nil
	}
	return append(json.RawMessage(nil), b...)
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
