package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/mailmerge/internal/dispatcher"
)

func TestServer_HealthEndpoint(t *testing.T) {
	ts := httptest.NewServer(NewServer(&Config{}, nil, nil).Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.NotEmpty(t, health.Version)
}

func TestServer_ForwardsAPI(t *testing.T) {
	var paths []string
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusTeapot)
	})

	ts := httptest.NewServer(NewServer(&Config{}, api, nil).Router())
	defer ts.Close()

	for _, p := range []string{"/health", "/api/v1/dispatch/runs"} {
		resp, err := http.Get(ts.URL + p)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusTeapot, resp.StatusCode, p)
	}
	assert.Equal(t, []string{"/health", "/api/v1/dispatch/runs"}, paths)
}

func TestServer_CORS(t *testing.T) {
	ts := httptest.NewServer(NewServer(&Config{AllowedOrigins: []string{"https://ops.example.com"}}, nil, nil).Router())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "https://ops.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_WebSocketReceivesRunEvents(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	ts := httptest.NewServer(NewServer(&Config{}, nil, hub).Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	c, wsResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer c.Close()
	if wsResp != nil && wsResp.Body != nil {
		defer wsResp.Body.Close()
	}

	notifier := NewHubNotifier(hub)
	id := uuid.New()

	// registration is asynchronous; keep publishing until the client sees one
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(20 * time.Millisecond):
				notifier.RunProgress(context.Background(), dispatcher.Progress{RunID: id, Processed: 1, Requested: 2, Percent: 50})
			}
		}
	}()
	defer close(done)

	var evt struct {
		Type    string              `json:"type"`
		Payload dispatcher.Progress `json:"payload"`
	}
	require.NoError(t, c.ReadJSON(&evt))
	assert.Equal(t, EventRunProgress, evt.Type)
	assert.Equal(t, id, evt.Payload.RunID)
	assert.Equal(t, 50.0, evt.Payload.Percent)
}

func TestServer_CORSPreflightAllowsStopRun(t *testing.T) {
	api := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	ts := httptest.NewServer(NewServer(&Config{AllowedOrigins: []string{"http://ui.example"}}, api, nil).Router())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/dispatch/runs/current", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://ui.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "http://ui.example", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodDelete)
}

func TestServer_WebSocketOriginCheck(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	ts := httptest.NewServer(NewServer(&Config{AllowedOrigins: []string{"https://ops.example.com"}}, nil, hub).Router())
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"allowed origin", "https://ops.example.com", true},
		{"origin case differs", "https://OPS.example.com", true},
		{"foreign origin", "https://evil.example", false},
		{"no origin header", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			c, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
			if resp != nil && resp.Body != nil {
				defer resp.Body.Close()
			}
			if !tt.ok {
				require.Error(t, err)
				require.NotNil(t, resp)
				assert.Equal(t, http.StatusForbidden, resp.StatusCode)
				return
			}
			require.NoError(t, err)
			c.Close()
		})
	}
}

func TestServer_WebSocketAfterHubStopped(t *testing.T) {
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run()
		close(stopped)
	}()
	hub.Stop()
	<-stopped

	ts := httptest.NewServer(NewServer(&Config{}, nil, hub).Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	c, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer c.Close()
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}

	// the server closes the connection instead of hanging on registration
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = c.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
