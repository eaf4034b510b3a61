package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalarHandler_EscapesTitle(t *testing.T) {
	h := ScalarHandler("/openapi.json", `Mail "merge" <script>alert(1)</script>`, "Bulk dispatch")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, `data-url="/openapi.json"`)
	assert.Contains(t, body, "hideTestRequestButton&#34;:true")
	assert.Contains(t, body, scalarCDN)
}

func TestServer_MountDocsOn(t *testing.T) {
	srv := newTestServer(&Dependencies{Manager: &mockManager{}})
	r := chi.NewRouter()
	srv.MountDocsOn(r, "Mailmerge", "Bulk dispatch")

	ts := httptest.NewServer(r)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/docs")
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(page), "<title>Mailmerge - API Documentation</title>")

	resp, err = http.Get(ts.URL + "/openapi.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Contains(t, doc.Paths, "/api/v1/dispatch/runs")
}
