package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gpng/edge-relay/services/backend"
	"github.com/gpng/edge-relay/services/health"
	"github.com/gpng/edge-relay/services/telegram"
	"github.com/gpng/edge-relay/services/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMessage struct {
	chatID int64
	text   string
	opts   int
}

type fakeNotifier struct {
	sent   []sentMessage
	reject bool
	panic  bool
}

func (n *fakeNotifier) Notify(_ context.Context, chatID int64, text string, opts ...telegram.MessageOption) bool {
	if n.panic {
		panic("notifier exploded")
	}
	n.sent = append(n.sent, sentMessage{chatID, text, len(opts)})
	return !n.reject
}

type fakeBackend struct {
	payloads [][]byte
	result   json.RawMessage
	err      error
}

func (b *fakeBackend) Forward(_ context.Context, payload []byte) (json.RawMessage, error) {
	b.payloads = append(b.payloads, payload)
	return b.result, b.err
}

type fakeProber struct {
	status health.SystemStatus
	calls  int
}

func (p *fakeProber) Probe(context.Context) health.SystemStatus {
	p.calls++
	s := p.status
	s.StartedAt = time.Now()
	return s
}

type recorded struct {
	kind telemetry.Kind
	rec  telemetry.Record
}

type fakeSink struct {
	records []recorded
}

func (s *fakeSink) Record(_ context.Context, kind telemetry.Kind, rec telemetry.Record) error {
	s.records = append(s.records, recorded{kind, rec})
	return nil
}

func (s *fakeSink) count(kind telemetry.Kind) int {
	n := 0
	for _, r := range s.records {
		if r.kind == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	notifier *fakeNotifier
	backend  *fakeBackend
	prober   *fakeProber
	sink     *fakeSink
	handlers *Handlers
}

func newFixture() *fixture {
	f := &fixture{
		notifier: &fakeNotifier{},
		backend:  &fakeBackend{result: json.RawMessage(`{"result":"x"}`)},
		prober:   &fakeProber{},
		sink:     &fakeSink{},
	}
	f.handlers = New(zap.NewNop(), f.notifier, f.backend, f.prober, f.sink)
	return f
}

func (f *fixture) post(t *testing.T, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handlers.handleWebhook().ServeHTTP(rec, req)

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return rec, res
}

func TestWebhookNoAction(t *testing.T) {
	f := newFixture()

	rec, res := f.post(t, `{"update_id":1}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, res["ok"])
	assert.Equal(t, "no_action", res["processed"])
	assert.Empty(t, f.notifier.sent)
	assert.Empty(t, f.backend.payloads)
	assert.Zero(t, f.prober.calls)
	assert.Empty(t, f.sink.records)
}

func TestWebhookStart(t *testing.T) {
	f := newFixture()

	rec, res := f.post(t, `{"message":{"text":"/start","chat":{"id":42}}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]interface{}{"ok": true, "processed": "quick", "command": "/start"}, res)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, int64(42), f.notifier.sent[0].chatID)
	assert.Contains(t, f.notifier.sent[0].text, "/help")
	assert.Equal(t, 1, f.notifier.sent[0].opts)

	assert.Empty(t, f.backend.payloads)
	require.Len(t, f.sink.records, 1)
	assert.Equal(t, telemetry.KindExecution, f.sink.records[0].kind)
	assert.Equal(t, sourceQuickCommand, f.sink.records[0].rec.Source)
}

func TestWebhookQuickCommandsNeverDelegate(t *testing.T) {
	for text, cmd := range commands {
		t.Run(text, func(t *testing.T) {
			f := newFixture()

			_, res := f.post(t, fmt.Sprintf(`{"message":{"text":%q,"chat":{"id":5}}}`, text))

			assert.Equal(t, "quick", res["processed"])
			assert.Equal(t, cmd.String(), res["command"])
			assert.Empty(t, f.backend.payloads)
			assert.Len(t, f.notifier.sent, 1)
			assert.Equal(t, 1, f.sink.count(telemetry.KindExecution))
		})
	}
}

func TestWebhookStatus(t *testing.T) {
	f := newFixture()
	f.prober.status = health.SystemStatus{BackendReachable: true, AnalyticsReachable: false}

	f.post(t, `{"message":{"text":"/status","chat":{"id":3}}}`)

	require.Len(t, f.notifier.sent, 1)
	text := f.notifier.sent[0].text
	assert.Contains(t, text, "Workflow engine: ✅ Active")
	assert.Contains(t, text, "Supabase: ❌ Unavailable")
	assert.Contains(t, text, "Response time: ")
	assert.Equal(t, 1, f.prober.calls)
}

func TestWebhookDelegation(t *testing.T) {
	body := `{"update_id":9,"message":{"text":"hello","chat":{"id":7}}}`
	f := newFixture()

	rec, res := f.post(t, body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{
		"ok":         true,
		"processed":  "aws_delegation",
		"aws_result": map[string]interface{}{"result": "x"},
	}, res)

	require.Len(t, f.backend.payloads, 1)
	assert.Equal(t, body, string(f.backend.payloads[0]))
	assert.Empty(t, f.notifier.sent)
	require.Len(t, f.sink.records, 1)
	assert.Equal(t, telemetry.KindExecution, f.sink.records[0].kind)
	assert.Equal(t, sourceDelegation, f.sink.records[0].rec.Source)
}

func TestWebhookDelegatesPlainTextAndComplexCommands(t *testing.T) {
	for _, text := range []string{"hello", "what is the weather", " /start", "/complex job", "/workflow", "/analytics today", "/complexity"} {
		t.Run(text, func(t *testing.T) {
			f := newFixture()

			_, res := f.post(t, fmt.Sprintf(`{"message":{"text":%q,"chat":{"id":1}}}`, text))

			assert.Equal(t, "aws_delegation", res["processed"])
			assert.Len(t, f.backend.payloads, 1)
		})
	}
}

func TestWebhookDelegationFailure(t *testing.T) {
	f := newFixture()
	f.backend.err = fmt.Errorf("%w: backend responded with status: 502", backend.ErrUnreachable)

	rec, res := f.post(t, `{"message":{"text":"hello","chat":{"id":7}}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{
		"ok":        true,
		"processed": "error_fallback",
		"error":     f.backend.err.Error(),
	}, res)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, int64(7), f.notifier.sent[0].chatID)
	assert.Equal(t, MsgTemporaryFailure, f.notifier.sent[0].text)

	require.Len(t, f.sink.records, 1)
	r := f.sink.records[0]
	assert.Equal(t, telemetry.KindError, r.kind)
	assert.Equal(t, sourceDelegationError, r.rec.Source)
	assert.Contains(t, r.rec.Error, "502")
	assert.Equal(t, json.RawMessage(`{"message":{"text":"hello","chat":{"id":7}}}`), r.rec.Input)
}

func TestWebhookUnknownCommand(t *testing.T) {
	for _, body := range []string{
		`{"message":{"text":"/unknown_cmd","chat":{"id":1}}}`,
		`{"message":{"text":"/START","chat":{"id":1}}}`,
		`{"message":{"text":"/start now","chat":{"id":1}}}`,
		`{"message":{"chat":{"id":1}}}`,
	} {
		t.Run(body, func(t *testing.T) {
			f := newFixture()

			rec, res := f.post(t, body)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, map[string]interface{}{"ok": true, "processed": "unknown_command"}, res)
			require.Len(t, f.notifier.sent, 1)
			assert.Equal(t, int64(1), f.notifier.sent[0].chatID)
			assert.Equal(t, MsgUnknownCommand, f.notifier.sent[0].text)
			assert.Empty(t, f.backend.payloads)
		})
	}
}

func TestWebhookQuickCallback(t *testing.T) {
	f := newFixture()
	f.prober.status = health.SystemStatus{BackendReachable: true, AnalyticsReachable: true}

	_, res := f.post(t, `{"callback_query":{"id":"c1","data":"status","message":{"message_id":2,"chat":{"id":11}}}}`)

	assert.Equal(t, map[string]interface{}{"ok": true, "processed": "quick_callback", "callback": "status"}, res)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, int64(11), f.notifier.sent[0].chatID)
	assert.Contains(t, f.notifier.sent[0].text, "backend_reachable")
	assert.Empty(t, f.backend.payloads)
	assert.Equal(t, 1, f.sink.count(telemetry.KindExecution))
}

func TestWebhookQuickCallbacksNeverDelegate(t *testing.T) {
	for data := range callbacks {
		t.Run(data, func(t *testing.T) {
			f := newFixture()

			_, res := f.post(t, fmt.Sprintf(`{"callback_query":{"data":%q,"message":{"chat":{"id":1}}}}`, data))

			assert.Equal(t, "quick_callback", res["processed"])
			assert.Len(t, f.notifier.sent, 1)
			assert.Empty(t, f.backend.payloads)
		})
	}
}

func TestWebhookQuickCallbackWithoutMessage(t *testing.T) {
	f := newFixture()

	_, res := f.post(t, `{"callback_query":{"id":"c1","data":"help"}}`)

	assert.Equal(t, "quick_callback", res["processed"])
	assert.Empty(t, f.notifier.sent)
	assert.Empty(t, f.backend.payloads)
}

func TestWebhookCallbackDelegation(t *testing.T) {
	f := newFixture()

	_, res := f.post(t, `{"callback_query":{"id":"c1","data":"approve:12","message":{"chat":{"id":11}}}}`)

	assert.Equal(t, "aws_delegation", res["processed"])
	assert.Len(t, f.backend.payloads, 1)
}

func TestWebhookCallbackDelegationFailureHasNoNotice(t *testing.T) {
	f := newFixture()
	f.backend.err = backend.ErrUnreachable

	rec, res := f.post(t, `{"callback_query":{"id":"c1","data":"approve:12","message":{"chat":{"id":11}}}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "error_fallback", res["processed"])
	assert.Empty(t, f.notifier.sent)
	assert.Equal(t, 1, f.sink.count(telemetry.KindError))
}

func TestWebhookRejectedNotifyIsNotAFailure(t *testing.T) {
	f := newFixture()
	f.notifier.reject = true

	rec, res := f.post(t, `{"message":{"text":"/help","chat":{"id":1}}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "quick", res["processed"])
	output := f.sink.records[0].rec.Output.(map[string]interface{})
	assert.Equal(t, false, output["delivered"])
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	f := newFixture()

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := httptest.NewRecorder()
		f.handlers.handleWebhook().ServeHTTP(rec, httptest.NewRequest(method, WebhookPath, nil))

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
		assert.JSONEq(t, `{"ok":false,"processed":"method_not_allowed","error":"Method not allowed","allowed":["POST"]}`, rec.Body.String())
	}
	assert.Empty(t, f.sink.records)
}

func TestWebhookFaults(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		setup   func(f *fixture)
		wantErr string
	}{
		{"invalid json", `{"message":`, nil, "decoding update"},
		{"wrong shape", `{"message":{"chat":{"id":"abc"}}}`, nil, "decoding update"},
		{"panic", `{"message":{"text":"/help","chat":{"id":1}}}`, func(f *fixture) { f.notifier.panic = true }, "notifier exploded"},
		{"message without chat", `{"update_id":9,"message":{"text":"/start"}}`, nil, "message without chat"},
		{"callback message without chat", `{"callback_query":{"id":"1","data":"status","message":{"message_id":3}}}`, nil, "message without chat"},
		{"oversized body", `{"message":{"text":"` + strings.Repeat("x", maxUpdateBytes) + `"}}`, nil, "request body too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.setup != nil {
				tt.setup(f)
			}

			rec, res := f.post(t, tt.body)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, false, res["ok"])
			assert.Equal(t, "Internal server error", res["error"])
			assert.Equal(t, "fault", res["processed"])
			assert.Empty(t, f.notifier.sent)
			assert.Empty(t, f.backend.payloads)
			_, err := time.Parse(time.RFC3339Nano, res["timestamp"].(string))
			assert.NoError(t, err)

			require.Equal(t, 1, f.sink.count(telemetry.KindError))
			r := f.sink.records[len(f.sink.records)-1]
			assert.Equal(t, sourceWebhook, r.rec.Source)
			assert.Contains(t, r.rec.Error, tt.wantErr)
		})
	}
}

func TestRunCommandCoversEveryCommand(t *testing.T) {
	f := newFixture()
	for text, cmd := range commands {
		assert.Equal(t, text, cmd.String())
		_, err := f.handlers.runCommand(context.Background(), zap.NewNop(), cmd, 1)
		assert.NoError(t, err, text)
	}

	_, err := f.handlers.runCommand(context.Background(), zap.NewNop(), command(99), 1)
	assert.Error(t, err)
}

func TestRunCallbackCoversEveryCallback(t *testing.T) {
	f := newFixture()
	for data, cb := range callbacks {
		assert.Equal(t, data, cb.String())
		_, err := f.handlers.runCallback(context.Background(), cb, 1)
		assert.NoError(t, err, data)
	}

	_, err := f.handlers.runCallback(context.Background(), callback(99), 1)
	assert.Error(t, err)
}

func TestShouldDelegate(t *testing.T) {
	assert.True(t, shouldDelegate("hi"))
	assert.True(t, shouldDelegate("/workflow run"))
	assert.False(t, shouldDelegate(""))
	assert.False(t, shouldDelegate("/stats"))
}
