package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kafka-bridge/src/broker"
	"kafka-bridge/src/contracts"
	"kafka-bridge/src/logger"
	"kafka-bridge/src/publish"
)

type recordingPublisher struct {
	mu        sync.Mutex
	envelopes []any
}

func (p *recordingPublisher) PublishAndForget(ctx context.Context, envelope any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelopes = append(p.envelopes, envelope)
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, SendMessagePath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSendMessageAcknowledges(t *testing.T) {
	pub := &recordingPublisher{}
	h := NewRouter(pub, 1024, logger.NewSilentLogger())

	rec := post(t, h, `{"message": {"a": 1}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contracts.Acknowledgment, rec.Body.String())
	require.Len(t, pub.envelopes, 1)
	assert.JSONEq(t, `{"message": {"a": 1}}`, string(pub.envelopes[0].(json.RawMessage)))
}

func TestSendMessageAcceptsAnyJSON(t *testing.T) {
	pub := &recordingPublisher{}
	h := NewRouter(pub, 1024, logger.NewSilentLogger())

	for _, body := range []string{`"bare"`, `[1,2]`, `42`, `{}`} {
		rec := post(t, h, body)
		assert.Equal(t, http.StatusOK, rec.Code, body)
	}
	assert.Len(t, pub.envelopes, 4)
}

func TestSendMessageRejectsInvalidBodies(t *testing.T) {
	pub := &recordingPublisher{}
	h := NewRouter(pub, 16, logger.NewSilentLogger())

	rec := post(t, h, `{"message": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, h, ``)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, h, `{"message": "this body is too long"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	assert.Empty(t, pub.envelopes)
}

func TestSendMessageWrongMethod(t *testing.T) {
	h := NewRouter(&recordingPublisher{}, 1024, logger.NewSilentLogger())

	req := httptest.NewRequest(http.MethodGet, SendMessagePath, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthz(t *testing.T) {
	h := NewRouter(&recordingPublisher{}, 1024, logger.NewSilentLogger())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

// The acknowledgment is identical whether delivery later succeeds or fails.
func TestAcknowledgmentIndependentOfOutcome(t *testing.T) {
	for _, failure := range []error{nil, errors.New("broker unreachable")} {
		brk := broker.NewInMemoryBroker()
		brk.SetFailure(failure)
		log := logger.NewMemoryLogger()
		pub := publish.NewPublisher(brk, contracts.DefaultTopic, log)

		rec := post(t, NewRouter(pub, 1024, logger.NewSilentLogger()), `{"message": "hello"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, contracts.Acknowledgment, rec.Body.String())

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		require.NoError(t, pub.Wait(ctx))
		cancel()

		if failure == nil {
			assert.Len(t, log.Level(logger.LevelInfo), 1)
			assert.Empty(t, log.Level(logger.LevelError))
		} else {
			assert.Len(t, log.Level(logger.LevelError), 1)
			assert.Empty(t, log.Level(logger.LevelInfo))
		}
		brk.Close()
	}
}
