package api

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

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/frymyresume/interviewd/internal/ai"
	"github.com/frymyresume/interviewd/internal/interview"
	"github.com/frymyresume/interviewd/internal/scoring"
)

var answers = []string{
	"At my last job our checkout service kept timing out during sales. I was responsible for stability, so I profiled the database calls, added caching for the product lookups, and the error rate dropped by ninety percent within a week.",
	"Two engineers on my team disagreed about the API design and the work stalled. I set up a short meeting, wrote down both proposals with their tradeoffs, and we agreed on a hybrid that shipped on schedule.",
	"I noticed our onboarding documents were outdated, so I volunteered to rewrite them. I interviewed recent hires, organized the guide by first week tasks, and new engineers now open their first pull request two days sooner.",
}

// scriptedLive finishes every interviewer turn as soon as it is instructed.
type scriptedLive struct {
	events    chan *ai.LiveEvent
	closed    chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	texts  []string
	chunks int
}

func newScriptedLive() *scriptedLive {
	return &scriptedLive{
		events: make(chan *ai.LiveEvent, 16),
		closed: make(chan struct{}),
	}
}

func (l *scriptedLive) SendText(text string) error {
	l.mu.Lock()
	l.texts = append(l.texts, text)
	l.mu.Unlock()

	l.events <- &ai.LiveEvent{Audio: []ai.AudioChunk{{Data: []byte{0, 1}, SampleRate: 24000}}}
	l.events <- &ai.LiveEvent{TurnComplete: true}
	return nil
}

func (l *scriptedLive) SendAudio([]byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chunks++
	return nil
}

func (l *scriptedLive) EndAudio() error { return nil }

func (l *scriptedLive) Receive() (*ai.LiveEvent, error) {
	select {
	case event := <-l.events:
		return event, nil
	case <-l.closed:
		return nil, errors.New("live session closed")
	}
}

func (l *scriptedLive) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

type scriptedDialer struct {
	live *scriptedLive
	err  error
}

func (d *scriptedDialer) Dial(context.Context, ai.LiveSetup) (ai.LiveSession, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.live, nil
}

func setupServer(dialer ai.LiveDialer) (*Server, *interview.Registry) {
	cfg := interview.DefaultConfig()
	cfg.GraceDelay = 0

	registry := interview.NewRegistry(interview.DefaultRegistryConfig(), nil)
	evaluator := scoring.NewAggregator(nil, nil, nil, 0)
	svc := interview.NewService(nil, dialer, evaluator, registry, cfg, zap.NewNop())

	return NewServer(svc, Config{}, zap.NewNop()), registry
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := setupServer(&scriptedDialer{live: newScriptedLive()})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "interviewd" || body["active_sessions"] != float64(0) {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestSessionsEndpoint(t *testing.T) {
	srv, registry := setupServer(&scriptedDialer{live: newScriptedLive()})

	session, err := interview.NewSession("abc", "Acme", "SRE", interview.DefaultQuestions)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	registry.Register(session, func() {})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 1 || body[0]["id"] != "abc" || body[0]["state"] != "asking_question(1)" {
		t.Fatalf("unexpected body %v", body)
	}
	if _, ok := body[0]["age_seconds"]; !ok {
		t.Fatalf("missing age_seconds in %v", body[0])
	}
}

func TestCheckOrigin(t *testing.T) {
	srv := NewServer(nil, Config{AllowedOrigins: []string{"https://app.example.com/"}}, nil)

	tests := []struct {
		origin string
		allow  bool
	}{
		{origin: "", allow: true},
		{origin: "https://app.example.com", allow: true},
		{origin: "http://localhost:3000", allow: false},
		{origin: "https://evil.example.com", allow: false},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, interviewPath, nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := srv.checkOrigin(req); got != tt.allow {
			t.Fatalf("origin %q: allow=%v, want %v", tt.origin, got, tt.allow)
		}
	}

	wildcard := NewServer(nil, Config{AllowedOrigins: []string{"*"}}, nil)
	req := httptest.NewRequest(http.MethodGet, interviewPath, nil)
	req.Header.Set("Origin", "https://anything.example.com")
	if !wildcard.checkOrigin(req) {
		t.Fatal("wildcard must allow every origin")
	}
}

type wsClient struct {
	t  *testing.T
	ws *websocket.Conn
}

func dialInterview(t *testing.T, ts *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + interviewPath
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func (c *wsClient) send(v any) {
	c.t.Helper()
	if err := c.ws.WriteJSON(v); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

// next returns the next server message of the given type, skipping audio.
func (c *wsClient) next(msgType string) map[string]any {
	c.t.Helper()

	for {
		if err := c.ws.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
			c.t.Fatalf("deadline: %v", err)
		}
		var msg map[string]any
		if err := c.ws.ReadJSON(&msg); err != nil {
			c.t.Fatalf("read while waiting for %s: %v", msgType, err)
		}
		if msg["type"] == interview.TypeAudio && msgType != interview.TypeAudio {
			continue
		}
		if msg["type"] != msgType {
			c.t.Fatalf("expected %s, got %v", msgType, msg)
		}
		return msg
	}
}

func TestInterviewOverWebSocket(t *testing.T) {
	live := newScriptedLive()
	srv, registry := setupServer(&scriptedDialer{live: live})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ws, _, err := dialInterview(t, ts, "http://localhost:5173")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	client := &wsClient{t: t, ws: ws}

	client.send(map[string]string{"company": "Acme", "role": "Backend Engineer"})

	chunk := make([]byte, 12800)
	for n := 1; n <= interview.MaxQuestions; n++ {
		question := client.next(interview.TypeQuestion)
		if question["question_number"] != float64(n) || question["content"] != interview.DefaultQuestions[n-1] {
			t.Fatalf("unexpected question %v", question)
		}
		client.next(interview.TypeTurnComplete)

		client.send(map[string]any{"type": "transcript_final", "question_number": n, "text": answers[n-1]})
		for i := 0; i < 3; i++ {
			client.send(map[string]any{"type": "audio", "data": chunk})
		}
		client.send(map[string]any{"type": "end_of_turn", "had_speech": true})
	}

	client.next(interview.TypeReviewing)
	result := client.next(interview.TypeInterviewComplete)

	// No scoring model is configured, so clean answers get the fallback score.
	if result["score"] != float64(scoring.FallbackScore) || result["disqualified"] != false {
		t.Fatalf("unexpected result %v", result)
	}
	if result["scoring_version"] != scoring.Version {
		t.Fatalf("unexpected scoring version %v", result["scoring_version"])
	}

	deadline := time.Now().Add(2 * time.Second)
	for registry.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if registry.Len() != 0 {
		t.Fatalf("session must be removed after completion")
	}
}

func TestInterviewReportsDialFailure(t *testing.T) {
	srv, _ := setupServer(&scriptedDialer{err: errors.New("upstream unavailable")})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ws, _, err := dialInterview(t, ts, "")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	client := &wsClient{t: t, ws: ws}

	client.send(map[string]string{"company": "Acme", "role": "SRE"})
	msg := client.next(interview.TypeError)
	if text, _ := msg["message"].(string); !strings.Contains(text, "upstream unavailable") {
		t.Fatalf("unexpected error message %v", msg)
	}
}

func TestInterviewRejectsUnknownOrigin(t *testing.T) {
	srv, _ := setupServer(&scriptedDialer{live: newScriptedLive()})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	_, resp, err := dialInterview(t, ts, "https://evil.example.com")
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}
}
