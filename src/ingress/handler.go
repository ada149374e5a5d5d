// Package ingress exposes the HTTP endpoint that hands payloads to the publisher.
package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"kafka-bridge/src/contracts"
	"kafka-bridge/src/logger"
)

// SendMessagePath is the route accepting payloads.
const SendMessagePath = "/api/kafka/sendMessage"

// Publisher is the part of publish.Publisher the endpoint needs.
type Publisher interface {
	PublishAndForget(ctx context.Context, envelope any)
}

type handler struct {
	publisher Publisher
	maxBody   int64
	logger    logger.Logger
}

// NewRouter builds the ingress routes. Bodies larger than maxBody bytes are rejected.
func NewRouter(pub Publisher, maxBody int64, log logger.Logger) http.Handler {
	h := &handler{publisher: pub, maxBody: maxBody, logger: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Post(SendMessagePath, h.sendMessage)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeText(w, http.StatusOK, "ok")
	})
	return r
}

// sendMessage acknowledges once the payload is handed to the publisher.
// The response never reflects the delivery outcome.
func (h *handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "request body must be a JSON document")
		return
	}

	h.publisher.PublishAndForget(r.Context(), json.RawMessage(body))
	writeText(w, http.StatusOK, contracts.Acknowledgment)
}

func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("[Ingress] %s %s -> %d (%s)", r.Method, r.URL.Path, ww.Status(), time.Since(start))
		})
	}
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, text)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
