package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/duzhibot"
	httpadapter "github.com/aretw0/duzhibot/pkg/adapters/http"
	"github.com/aretw0/duzhibot/pkg/adapters/line"
	"github.com/aretw0/duzhibot/pkg/adapters/memory"
	"github.com/aretw0/duzhibot/pkg/domain"
	"github.com/aretw0/duzhibot/pkg/observability"
	"github.com/aretw0/duzhibot/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "channel-secret"

type sentReply struct {
	token string
	msgs  []domain.Message
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentReply
}

func (s *recordingSender) Reply(_ context.Context, token string, msgs []domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentReply{token, msgs})
	return nil
}

type fixture struct {
	server  *httpadapter.Server
	handler http.Handler
	sender  *recordingSender
	manager *session.Manager
	metrics *observability.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bot, err := duzhibot.New(duzhibot.WithImageURL("https://example.com/huisha.png"))
	require.NoError(t, err)
	f := &fixture{
		sender:  &recordingSender{},
		manager: session.NewManager(memory.NewStore(), bot),
		metrics: observability.NewMetrics(),
	}
	f.server = httpadapter.NewServer(f.manager, bot,
		httpadapter.WithChannelSecret(secret),
		httpadapter.WithReplySender(f.sender),
		httpadapter.WithMetrics(f.metrics),
	)
	f.handler = f.server.Handler()
	return f
}

func textEvent(token, user, text string) string {
	return fmt.Sprintf(`{"type":"message","replyToken":%q,"timestamp":1,"source":{"type":"user","userId":%q},"message":{"id":"1","type":"text","text":%q}}`, token, user, text)
}

func webhook(events ...string) string {
	return `{"destination":"U0","events":[` + strings.Join(events, ",") + `]}`
}

func (f *fixture) post(body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
	req.Header.Set(line.SignatureHeader, signature)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestCallback_RunsSessionAndReplies(t *testing.T) {
	f := newFixture(t)
	body := webhook(textEvent("r-1", "U1", "/register Alice"))

	rec := f.post(body, line.Sign(secret, body))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	state, err := f.manager.Load(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "init.registered", state.Path)
	assert.Equal(t, "alice", state.Data["nick"])

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "r-1", f.sender.sent[0].token)
	assert.NotEmpty(t, f.sender.sent[0].msgs)
	assert.LessOrEqual(t, len(f.sender.sent[0].msgs), line.MaxMessages)
}

func TestCallback_UnknownCommandFallback(t *testing.T) {
	f := newFixture(t)
	body := webhook(textEvent("r-1", "U1", "dance"))

	rec := f.post(body, line.Sign(secret, body))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, f.sender.sent, 1)
	msgs := f.sender.sent[0].msgs
	require.GreaterOrEqual(t, len(msgs), 2)
	last := msgs[len(msgs)-2:]
	assert.Equal(t, domain.Image("https://example.com/huisha.png"), last[0])
	assert.True(t, strings.HasPrefix(last[1].Text, duzhibot.NoSuchCommand))
}

func TestCallback_SkipsOtherEvents(t *testing.T) {
	f := newFixture(t)
	body := webhook(
		`{"type":"follow","replyToken":"r-0","source":{"type":"user","userId":"U1"}}`,
		`{"type":"message","replyToken":"r-1","source":{"type":"group","groupId":"G1"},"message":{"type":"text","text":"register x"}}`,
	)

	rec := f.post(body, line.Sign(secret, body))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.sender.sent)

	ids, err := f.manager.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCallback_Rejects(t *testing.T) {
	f := newFixture(t)
	body := webhook(textEvent("r-1", "U1", "register alice"))

	tests := []struct {
		name      string
		body      string
		signature string
	}{
		{"missing signature", body, ""},
		{"wrong secret", body, line.Sign("other", body)},
		{"tampered body", strings.Replace(body, "alice", "mallory", 1), line.Sign(secret, body)},
		{"not json", "nope", line.Sign(secret, "nope")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.post(tt.body, tt.signature)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, f.sender.sent)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `duzhibot_webhook_duration_seconds_count{status="400"} 4`)
}

func TestCallback_NoSecretRefusedByDefault(t *testing.T) {
	bot, err := duzhibot.New()
	require.NoError(t, err)
	sender := &recordingSender{}
	manager := session.NewManager(memory.NewStore(), bot)
	h := httpadapter.NewServer(manager, bot, httpadapter.WithReplySender(sender)).Handler()

	for _, sig := range []string{"", line.Sign("guess", []byte("x"))} {
		req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(webhook(textEvent("r-1", "U1", "register mallory"))))
		if sig != "" {
			req.Header.Set(line.SignatureHeader, sig)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	assert.Empty(t, sender.sent)
	ids, err := manager.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCallback_InsecureSkipsCheck(t *testing.T) {
	bot, err := duzhibot.New()
	require.NoError(t, err)
	sender := &recordingSender{}
	h := httpadapter.NewServer(session.NewManager(memory.NewStore(), bot), bot,
		httpadapter.WithReplySender(sender),
		httpadapter.WithInsecureWebhook(),
	).Handler()

	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(webhook(textEvent("r-1", "U1", "help"))))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].msgs[0].Text, "Available commands:")
}

func TestGetGraph(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		target string
		code   int
		ctype  string
		has    string
	}{
		{"default world json", "/graph", http.StatusOK, "application/json", `"title":"world"`},
		{"lexer mermaid", "/graph?machine=lexer&format=mermaid", http.StatusOK, "text/plain", "stateDiagram-v2"},
		{"parser json", "/graph?machine=parser", http.StatusOK, "application/json", `"title":"parser"`},
		{"unknown machine", "/graph?machine=nope", http.StatusNotFound, "", ""},
		{"unknown format", "/graph?format=png", http.StatusBadRequest, "", ""},
		{"unknown session", "/graph?format=mermaid&session=ghost", http.StatusNotFound, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.Equal(t, tt.code, rec.Code)
			if tt.code != http.StatusOK {
				return
			}
			assert.Contains(t, rec.Header().Get("Content-Type"), tt.ctype)
			assert.Contains(t, rec.Body.String(), tt.has)
		})
	}
}

func TestGetGraph_SessionOverlay(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.manager.Handle(context.Background(), "U1", "register alice", nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graph?format=mermaid&session=U1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "class init_init visited")
	assert.Contains(t, rec.Body.String(), "class init_registered current")
}

func TestHealthAndInfo(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/info", nil))
	var info map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "duzhibot", info["app"])
	assert.Equal(t, strings.TrimSpace(duzhibot.Version), info["version"])
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/callback", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSubscribeEvents(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?session_id=U1&watch=data", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: ping", lines.Text())

	body := webhook(textEvent("r-1", "U1", "register alice"))
	req2, err := http.NewRequest(http.MethodPost, srv.URL+"/callback", strings.NewReader(body))
	require.NoError(t, err)
	req2.Header.Set(line.SignatureHeader, line.Sign(secret, body))
	resp2, err := http.DefaultClient.Do(req2)
	require.NoError(t, err)
	resp2.Body.Close()

	for lines.Scan() {
		text := lines.Text()
		if !strings.HasPrefix(text, "data: {") {
			continue
		}
		var diff domain.StateDiff
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(text, "data: ")), &diff))
		assert.Equal(t, "U1", diff.SessionID)
		require.NotNil(t, diff.Data["nick"])
		assert.Equal(t, "alice", *diff.Data["nick"])
		return
	}
	t.Fatal("no diff received")
}

func TestSubscribeEvents_RequiresSession(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
