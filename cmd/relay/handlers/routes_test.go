package handlers

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gpng/edge-relay/services/backend"
	"github.com/gpng/edge-relay/services/health"
	"github.com/gpng/edge-relay/services/telegram"
	"github.com/gpng/edge-relay/services/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// upstreams fakes Telegram, the workflow engine and Supabase on one server
type upstreams struct {
	mu            sync.Mutex
	sent          []url.Values
	forwarded     []string
	executions    int
	errors        int
	backendStatus int
}

func (u *upstreams) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	defer u.mu.Unlock()

	switch {
	case r.URL.Path == "/bottoken/sendMessage":
		r.ParseForm()
		u.sent = append(u.sent, r.PostForm)
		w.Write([]byte(`{"ok":true}`))
	case r.URL.Path == "/engine":
		body, _ := ioutil.ReadAll(r.Body)
		u.forwarded = append(u.forwarded, r.Header.Get(backend.OriginHeader)+" "+string(body))
		w.WriteHeader(u.backendStatus)
		w.Write([]byte(`{"result":"x"}`))
	case r.URL.Path == "/engine/health":
		w.WriteHeader(u.backendStatus)
	case r.URL.Path == "/rest/v1/":
		w.WriteHeader(http.StatusOK)
	case r.URL.Path == "/rest/v1/workflow_analytics":
		u.executions++
		w.WriteHeader(http.StatusCreated)
	case r.URL.Path == "/rest/v1/error_logs":
		u.errors++
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newServer(t *testing.T, backendStatus int) (*upstreams, *httptest.Server) {
	up := &upstreams{backendStatus: backendStatus}
	ext := httptest.NewServer(up)
	t.Cleanup(ext.Close)

	l := zap.NewNop()
	client := ext.Client()
	h := New(l,
		telegram.New(l, client, "token", ext.URL),
		backend.New(client, ext.URL+"/engine", ""),
		health.New(l, client, health.Config{
			BackendURL:   ext.URL + "/engine/health",
			AnalyticsURL: ext.URL,
			AnalyticsKey: "anon",
		}),
		telemetry.NewREST(l, client, ext.URL, "anon", ""),
	)

	relay := httptest.NewServer(h.Routes())
	t.Cleanup(relay.Close)
	return up, relay
}

func postUpdate(t *testing.T, url, body string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(url+WebhookPath, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var res map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return resp.StatusCode, res
}

func TestRoutesStart(t *testing.T) {
	up, relay := newServer(t, http.StatusOK)

	code, res := postUpdate(t, relay.URL, `{"message":{"text":"/start","chat":{"id":42}}}`)
	up.mu.Lock()
	defer up.mu.Unlock()

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]interface{}{"ok": true, "processed": "quick", "command": "/start"}, res)
	require.Len(t, up.sent, 1)
	assert.Equal(t, "42", up.sent[0].Get("chat_id"))
	assert.Equal(t, "HTML", up.sent[0].Get("parse_mode"))
	assert.Contains(t, up.sent[0].Get("text"), "/help")
	assert.Contains(t, up.sent[0].Get("reply_markup"), `"callback_data":"status"`)
	assert.Empty(t, up.forwarded)
	assert.Equal(t, 1, up.executions)
}

func TestRoutesDelegation(t *testing.T) {
	up, relay := newServer(t, http.StatusOK)
	body := `{"message":{"text":"hello","chat":{"id":7}}}`

	code, res := postUpdate(t, relay.URL, body)
	up.mu.Lock()
	defer up.mu.Unlock()

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "aws_delegation", res["processed"])
	assert.Equal(t, map[string]interface{}{"result": "x"}, res["aws_result"])
	assert.Equal(t, []string{"vercel-edge " + body}, up.forwarded)
	assert.Empty(t, up.sent)
	assert.Equal(t, 1, up.executions)
	assert.Equal(t, 0, up.errors)
}

func TestRoutesDelegationFailure(t *testing.T) {
	up, relay := newServer(t, http.StatusBadGateway)

	code, res := postUpdate(t, relay.URL, `{"message":{"text":"hello","chat":{"id":7}}}`)
	up.mu.Lock()
	defer up.mu.Unlock()

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "error_fallback", res["processed"])
	assert.Contains(t, res["error"], "status: 502")
	require.Len(t, up.sent, 1)
	assert.Equal(t, "7", up.sent[0].Get("chat_id"))
	assert.Equal(t, MsgTemporaryFailure, up.sent[0].Get("text"))
	assert.Equal(t, 1, up.errors)
	assert.Equal(t, 0, up.executions)
}

func TestRoutesMethodNotAllowed(t *testing.T) {
	_, relay := newServer(t, http.StatusOK)

	resp, err := http.Get(relay.URL + WebhookPath)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "POST", resp.Header.Get("Allow"))
}

func TestRoutesHealth(t *testing.T) {
	_, relay := newServer(t, http.StatusServiceUnavailable)

	resp, err := http.Get(relay.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var res struct {
		Data health.SystemStatus `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.False(t, res.Data.BackendReachable)
	assert.True(t, res.Data.AnalyticsReachable)
	assert.False(t, res.Data.StartedAt.IsZero())
}

func TestRoutesStatus(t *testing.T) {
	_, relay := newServer(t, http.StatusOK)

	resp, err := http.Get(relay.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := ioutil.ReadAll(resp.Body)
	assert.JSONEq(t, `{"message":"API responding","data":{"version":1}}`, string(body))
}
