package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchdesk-systems/watchdesk/internal/models"
	"github.com/watchdesk-systems/watchdesk/internal/service"
	"github.com/watchdesk-systems/watchdesk/internal/store"
	"github.com/watchdesk-systems/watchdesk/internal/summary"
)

type mockPipeline struct {
	processed []*models.Alert
	outcome   service.Outcome
}

func (m *mockPipeline) Process(ctx context.Context, alert *models.Alert) service.Outcome {
	m.processed = append(m.processed, alert)
	return m.outcome
}

func newTestHandler(t *testing.T) (*AlertHandler, *mockPipeline) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	compiler := summary.NewCompiler(store.NewRedisStoreWithClient(client, time.Hour))
	p := &mockPipeline{outcome: service.Outcome{Novel: true, WindowCount: 1, Action: "notify"}}
	return NewAlertHandler(p, compiler, nil, "test-secret", time.Hour, nil), p
}

func postAlert(t *testing.T, h *AlertHandler, apiKey string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/alerts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	rr := httptest.NewRecorder()
	h.HandleAlert(rr, req)
	return rr
}

func validAlertBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(models.Alert{
		SourceIP:        "203.0.113.5",
		RuleID:          5712,
		RuleLevel:       10,
		RuleDescription: "sshd: brute force trying to get access",
		Timestamp:       time.Now(),
	})
	require.NoError(t, err)
	return body
}

func TestHandleAlertSuccess(t *testing.T) {
	h, p := newTestHandler(t)

	rr := postAlert(t, h, "test-secret", validAlertBody(t))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
	require.Len(t, p.processed, 1)
	assert.Equal(t, "203.0.113.5", p.processed[0].SourceIP)
}

func TestHandleAlertMissingAPIKey(t *testing.T) {
	h, p := newTestHandler(t)

	rr := postAlert(t, h, "", validAlertBody(t))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, p.processed, "unauthorized requests must not reach the pipeline")
}

func TestHandleAlertWrongAPIKey(t *testing.T) {
	h, p := newTestHandler(t)

	rr := postAlert(t, h, "wrong", validAlertBody(t))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, p.processed)
}

func TestHandleAlertEmptyBody(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := postAlert(t, h, "test-secret", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "content missing")
}

func TestHandleAlertInvalidJSON(t *testing.T) {
	h, p := newTestHandler(t)

	rr := postAlert(t, h, "test-secret", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, p.processed)
}

func TestHandleAlertBadSourceIP(t *testing.T) {
	h, p := newTestHandler(t)

	body, _ := json.Marshal(models.Alert{SourceIP: "not-an-ip", RuleID: 5712, RuleLevel: 10})
	rr := postAlert(t, h, "test-secret", body)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, p.processed, "malformed alerts never enter the core pipeline")
}

func TestHandleAlertMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/alerts", nil)
	rr := httptest.NewRecorder()
	h.HandleAlert(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandleSummaryEmpty(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/summary", nil)
	req.Header.Set("x-api-key", "test-secret")
	rr := httptest.NewRecorder()
	h.HandleSummary(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Contains(t, resp["summary"], "Total alerts: 0")
}

func TestHandleSummaryUnauthorized(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/summary", nil)
	rr := httptest.NewRecorder()
	h.HandleSummary(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
