package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Overland-East-Bay/trip-notifier/internal/platform/logging"
	"github.com/Overland-East-Bay/trip-notifier/internal/ports/out/idempotency"
)

const idempotencyKeyHeader = "Idempotency-Key"

// idempotent runs handle once per (Idempotency-Key, caller, route, body).
//
// Idempotency handling (v1):
// - The first request claims the key by storing its bodyHash under the meta fingerprint
// - Replay the stored response if same caller+key+route+bodyHash
// - Reject if same caller+key+route with a different bodyHash (409 IDEMPOTENCY_KEY_REUSE)
// - Reject a duplicate that arrives while the first is still running (409 IDEMPOTENCY_IN_PROGRESS)
// - Only 2xx responses are stored; any other outcome releases the claim so the trigger can be retried
// Requests without the header are always executed.
func (s *Server) idempotent(w http.ResponseWriter, r *http.Request, route string, body any, handle func(ctx context.Context) (int, any)) {
	ctx := r.Context()
	key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	if key == "" || s.Idem == nil {
		status, payload := handle(ctx)
		writeResult(w, status, payload)
		return
	}

	caller, _ := SubjectFromContext(ctx)
	bodyHash, err := hashBody(body)
	if err != nil {
		writeAPIError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}

	metaFP := idempotency.Fingerprint{
		Key:      idempotency.Key(key),
		Caller:   caller,
		Route:    route,
		BodyHash: "",
	}
	respFP := metaFP
	respFP.BodyHash = bodyHash

	claimed, err := s.Idem.Claim(ctx, metaFP, idempotency.Record{
		StatusCode:  0,
		ContentType: "text/plain",
		Body:        []byte(bodyHash),
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		s.idemError(w, r, err)
		return
	}
	if !claimed {
		s.replayOrReject(w, r, metaFP, respFP)
		return
	}

	// The outcome is recorded even if the caller has gone away.
	storeCtx := context.WithoutCancel(ctx)
	log := logging.FromContext(ctx, nil)

	status, payload := handle(ctx)
	if status >= 200 && status < 300 {
		rec := idempotency.Record{StatusCode: status, CreatedAt: time.Now().UTC()}
		if payload != nil {
			b, err := json.Marshal(payload)
			if err == nil {
				rec.ContentType = "application/json"
				rec.Body = append(b, '\n')
			}
		}
		if err := s.Idem.Put(storeCtx, respFP, rec); err != nil {
			log.Warn("idempotency record not stored", zap.String("route", route), zap.Error(err))
		}
	} else if err := s.Idem.Release(storeCtx, metaFP); err != nil {
		log.Warn("idempotency claim not released", zap.String("route", route), zap.Error(err))
	}
	writeResult(w, status, payload)
}

// replayOrReject answers a request whose key is already claimed.
func (s *Server) replayOrReject(w http.ResponseWriter, r *http.Request, metaFP, respFP idempotency.Fingerprint) {
	ctx := r.Context()
	meta, ok, err := s.Idem.Get(ctx, metaFP)
	if err != nil {
		s.idemError(w, r, err)
		return
	}
	if ok && string(meta.Body) != respFP.BodyHash {
		writeAPIError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
		return
	}

	rec, ok, err := s.Idem.Get(ctx, respFP)
	if err != nil {
		s.idemError(w, r, err)
		return
	}
	if !ok {
		writeAPIError(w, r, http.StatusConflict, "IDEMPOTENCY_IN_PROGRESS", "a request with this idempotency key is still being processed", nil)
		return
	}
	w.Header().Set("Idempotent-Replayed", "true")
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.WriteHeader(rec.StatusCode)
	_, _ = w.Write(rec.Body)
}

func (s *Server) idemError(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context(), nil).Error("idempotency store failed", zap.Error(err))
	writeAPIError(w, r, http.StatusServiceUnavailable, "IDEMPOTENCY_UNAVAILABLE", "idempotency store unavailable", nil)
}

func writeResult(w http.ResponseWriter, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, payload)
}

func hashBody(body any) (string, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}
