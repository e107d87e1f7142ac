package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phish-triage/internal/allowlist"
	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/history"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	rules := core.DefaultRuleset()
	logger := zap.NewNop()
	service := core.NewTriageService(
		nil,
		core.NewHeuristicClassifier(rules, nil, logger),
		nil,
		nil,
		allowlist.NewChecker(rules.AllowedDomains, logger),
		rules,
		logger,
		false,
		time.Hour,
		0,
	)

	hub := NewHub(logger)
	t.Cleanup(hub.Close)

	return NewServer("127.0.0.1:0", service, history.NewStore(10), hub, logger)
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleScanURL(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv.handleScanURL, "/api/v1/scan/url", urlScanRequest{URL: "https://g00gle.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	var result core.ClassificationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, core.VerdictMalicious, result.Verdict)
	assert.NotEmpty(t, result.ScanID)
	assert.NotEmpty(t, result.Indicators)

	// The scan lands in history.
	record, ok := srv.store.Get(result.ScanID)
	require.True(t, ok)
	assert.Equal(t, history.KindURL, record.Kind)
	assert.Equal(t, "https://g00gle.com", record.Target)
}

func TestHandleScanURLValidationError(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv.handleScanURL, "/api/v1/scan/url", urlScanRequest{URL: "not a url"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "invalid input")

	assert.Zero(t, srv.store.Len(), "failed scans are not recorded")
}

func TestHandleScanURLBadBody(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan/url", bytes.NewReader([]byte("{broken")))
	rec := httptest.NewRecorder()
	srv.handleScanURL(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleScanURLMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scan/url", nil)
	rec := httptest.NewRecorder()
	srv.handleScanURL(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleScanEmail(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv.handleScanEmail, "/api/v1/scan/email", emailScanRequest{
		Sender:  "security@paypa1.com",
		Subject: "URGENT: verify your account",
		Content: "Click http://paypa1.com/login now.",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result core.ClassificationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, core.VerdictPhishing, result.Verdict)
	assert.NotEmpty(t, result.SuspiciousLinks)
}

func TestHandleListAndGetScans(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv.handleScanURL, "/api/v1/scan/url", urlScanRequest{URL: "https://example.org"})
	require.Equal(t, http.StatusOK, rec.Code)

	var result core.ClassificationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/scans", nil)
	listRec := httptest.NewRecorder()
	srv.handleListScans(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)

	var records []history.Record
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, result.ScanID, records[0].ScanID)

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/scans/"+result.ScanID, nil)
	getRec := httptest.NewRecorder()
	srv.handleGetScan(getRec, getReq)
	assert.Equal(t, http.StatusOK, getRec.Code)

	missReq := httptest.NewRequest(http.MethodGet, "/api/v1/scans/no-such-scan", nil)
	missRec := httptest.NewRecorder()
	srv.handleGetScan(missRec, missReq)
	assert.Equal(t, http.StatusNotFound, missRec.Code)
}

func TestCORSPreflight(t *testing.T) {
	handler := withCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the next handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/scan/url", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
