//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/esg-research/internal/chat"
	"github.com/sells-group/esg-research/internal/model"
	"github.com/sells-group/esg-research/internal/report"
	"github.com/sells-group/esg-research/internal/scorer"
	"github.com/sells-group/esg-research/internal/store"
)

type echoChat struct {
	texts []string
	err   error
}

func (c *echoChat) Handle(_ context.Context, _ *chat.Session, text string) ([]chat.Message, error) {
	c.texts = append(c.texts, text)
	if c.err != nil {
		return nil, c.err
	}
	return []chat.Message{{Role: chat.RoleAssistant, Content: "echo: " + text}}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *fakeDirectory, *echoChat) {
	t.Helper()
	dir := &fakeDirectory{entries: append(
		entriesOf(testAnalysis(1, "Tesla", 72.5), testAnalysis(2, "Johnson & Johnson", 64)),
		store.Entry{Company: model.Company{ID: 3, Name: "Enron", ResearchDate: testResearched.AddDate(-1, 0, 0)}},
	)}
	ch := &echoChat{}
	clock := func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }
	h := buildRouter(&apiServer{
		chat:     ch,
		sessions: chat.NewSessions(0, 0),
		dir:      dir,
		renderer: report.NewRenderer(report.WithClock(clock)),
		scorer:   scorer.New(),
	}, []string{"*"})
	return h, dir, ch
}

func serve(h http.Handler, method, target string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Health(t *testing.T) {
	h, _, _ := newTestRouter(t)
	rr := serve(h, http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_RequestID(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rr := serve(h, http.MethodGet, "/health", nil, nil)
	assert.Len(t, rr.Header().Get(requestIDHeader), 36)

	rr = serve(h, http.MethodGet, "/health", nil, map[string]string{requestIDHeader: "req-1"})
	assert.Equal(t, "req-1", rr.Header().Get(requestIDHeader))
}

func TestRouter_CORSPreflight(t *testing.T) {
	h, _, _ := newTestRouter(t)
	rr := serve(h, http.MethodOptions, "/chat", nil, map[string]string{
		"Origin":                        "https://app.example.com",
		"Access-Control-Request-Method": http.MethodPost,
	})

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_ChatNewAndExistingSession(t *testing.T) {
	h, _, ch := newTestRouter(t)

	body, _ := json.Marshal(chatRequest{Message: "Check out Tesla"})
	rr := serve(h, http.MethodPost, "/chat", body, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var first chatResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &first))
	require.NotEmpty(t, first.SessionID)
	assert.Equal(t, first.SessionID, rr.Header().Get(sessionIDHeader))
	require.Len(t, first.Messages, 2)
	assert.Equal(t, chat.Greeting, first.Messages[0].Content)
	assert.Equal(t, "echo: Check out Tesla", first.Messages[1].Content)

	body, _ = json.Marshal(chatRequest{Message: "List companies"})
	rr = serve(h, http.MethodPost, "/chat", body, map[string]string{sessionIDHeader: first.SessionID})
	require.Equal(t, http.StatusOK, rr.Code)

	var second chatResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &second))
	assert.Equal(t, first.SessionID, second.SessionID)
	require.Len(t, second.Messages, 1)
	assert.Equal(t, "echo: List companies", second.Messages[0].Content)
	assert.Equal(t, []string{"Check out Tesla", "List companies"}, ch.texts)
}

func TestRouter_ChatBadRequests(t *testing.T) {
	h, _, ch := newTestRouter(t)

	rr := serve(h, http.MethodPost, "/chat", []byte("{not json"), nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	body, _ := json.Marshal(chatRequest{Message: "   "})
	rr = serve(h, http.MethodPost, "/chat", body, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "message is required")
	assert.Empty(t, ch.texts)
}

func TestRouter_ChatHandlerError(t *testing.T) {
	h, _, ch := newTestRouter(t)
	ch.err = context.DeadlineExceeded

	body, _ := json.Marshal(chatRequest{Message: "hi"})
	rr := serve(h, http.MethodPost, "/chat", body, nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRouter_ChatNotConfigured(t *testing.T) {
	h := buildRouter(&apiServer{sessions: chat.NewSessions(0, 0), dir: &fakeDirectory{}}, []string{"*"})

	body, _ := json.Marshal(chatRequest{Message: "hi"})
	rr := serve(h, http.MethodPost, "/chat", body, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRouter_ListCompanies(t *testing.T) {
	h, _, _ := newTestRouter(t)
	rr := serve(h, http.MethodGet, "/companies", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var rows []companyRow
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "Tesla", rows[0].Name)
	assert.True(t, rows[0].Fresh)
	assert.False(t, rows[2].Fresh)
}

func TestRouter_ListCompaniesError(t *testing.T) {
	h, dir, _ := newTestRouter(t)
	dir.err = context.Canceled

	rr := serve(h, http.MethodGet, "/companies", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRouter_GetCompany(t *testing.T) {
	h, _, _ := newTestRouter(t)
	rr := serve(h, http.MethodGet, "/companies/tesla", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Good", body["level"])
	assert.Contains(t, body, "recommendations")
	assert.Contains(t, body, "metrics")
	company, ok := body["company"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Tesla", company["name"])
}

func TestRouter_GetCompanyEscapedName(t *testing.T) {
	h, _, _ := newTestRouter(t)
	rr := serve(h, http.MethodGet, "/companies/Johnson%20%26%20Johnson", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"name":"Johnson & Johnson"`)
}

func TestRouter_GetCompanyNotFresh(t *testing.T) {
	h, _, _ := newTestRouter(t)

	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/companies/Enron", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/companies/Nobody", nil, nil).Code)
}

func TestRouter_Report(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rr := serve(h, http.MethodGet, "/companies/Tesla/report", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, report.Markdown.ContentType(), rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Tesla_Sustainability_Report_2026-10-15.md"`, rr.Header().Get("Content-Disposition"))
	assert.Contains(t, rr.Body.String(), "# Sustainability Research Report: Tesla")

	rr = serve(h, http.MethodGet, "/companies/Tesla/report?format=xlsx", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, report.XLSX.ContentType(), rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), ".xlsx")
	assert.Equal(t, "PK", rr.Body.String()[:2])
}

func TestRouter_ReportBadFormat(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rr := serve(h, http.MethodGet, "/companies/Tesla/report?format=pdf", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "pdf")

	rr = serve(h, http.MethodGet, "/companies/Enron/report", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_DeleteCompany(t *testing.T) {
	h, dir, _ := newTestRouter(t)

	rr := serve(h, http.MethodDelete, "/companies/TESLA", nil, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = serve(h, http.MethodDelete, "/companies/Enron", nil, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code, "stale companies can be deleted")

	rr = serve(h, http.MethodDelete, "/companies/Nobody", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	assert.Equal(t, []string{"Tesla", "Enron"}, dir.deleted)
}
