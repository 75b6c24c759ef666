package interview

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/frymyresume/interviewd/internal/ai"
)

var errClosed = errors.New("closed")

type fakeClient struct {
	handshake    Handshake
	handshakeErr error
	inbox        chan ClientMessage
	outbox       chan ServerMessage

	mu        sync.Mutex
	sent      []ServerMessage
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeClient(hs Handshake) *fakeClient {
	return &fakeClient{
		handshake: hs,
		inbox:     make(chan ClientMessage, 64),
		outbox:    make(chan ServerMessage, 1024),
		closed:    make(chan struct{}),
	}
}

func (c *fakeClient) ReadHandshake() (Handshake, error) { return c.handshake, c.handshakeErr }

func (c *fakeClient) ReadMessage() (ClientMessage, error) {
	select {
	case msg, ok := <-c.inbox:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case <-c.closed:
		return nil, errClosed
	}
}

func (c *fakeClient) WriteMessage(msg ServerMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closed:
		return errClosed
	default:
	}
	c.sent = append(c.sent, msg)
	c.outbox <- msg
	return nil
}

func (c *fakeClient) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.closed)
		c.mu.Unlock()
	})
	return nil
}

func (c *fakeClient) send(msg ClientMessage) { c.inbox <- msg }

func (c *fakeClient) messages() []ServerMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ServerMessage(nil), c.sent...)
}

type fakeLive struct {
	events chan *ai.LiveEvent
	texts  chan string

	mu        sync.Mutex
	audio     [][]byte
	audioEnds int
	closed    chan struct{}
	closeOnce sync.Once
	sendErr   error
}

func newFakeLive() *fakeLive {
	return &fakeLive{
		events: make(chan *ai.LiveEvent, 64),
		texts:  make(chan string, 16),
		closed: make(chan struct{}),
	}
}

func (l *fakeLive) SendText(text string) error {
	if l.sendErr != nil {
		return l.sendErr
	}
	l.texts <- text
	return nil
}

func (l *fakeLive) SendAudio(pcm []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sendErr != nil {
		return l.sendErr
	}
	l.audio = append(l.audio, pcm)
	return nil
}

func (l *fakeLive) EndAudio() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.audioEnds++
	return nil
}

func (l *fakeLive) Receive() (*ai.LiveEvent, error) {
	select {
	case event, ok := <-l.events:
		if !ok {
			return nil, errors.New("upstream went away")
		}
		return event, nil
	case <-l.closed:
		return nil, errClosed
	}
}

func (l *fakeLive) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

func (l *fakeLive) push(event *ai.LiveEvent) { l.events <- event }

func (l *fakeLive) audioChunks() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.audio)
}

type fakeDialer struct {
	live  *fakeLive
	err   error
	setup ai.LiveSetup
}

func (d *fakeDialer) Dial(_ context.Context, setup ai.LiveSetup) (ai.LiveSession, error) {
	d.setup = setup
	if d.err != nil {
		return nil, d.err
	}
	return d.live, nil
}

type fakeEvaluator struct {
	mu        sync.Mutex
	result    ai.Evaluation
	interview *ai.Interview
}

func (e *fakeEvaluator) Evaluate(_ context.Context, interview ai.Interview) ai.Evaluation {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.interview = &interview
	return e.result
}

func (e *fakeEvaluator) received() *ai.Interview {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interview
}

type queuedGenerator struct {
	mu      sync.Mutex
	replies []generatorReply
	prompts []string
	systems []string
}

type generatorReply struct {
	text string
	err  error
}

func (g *queuedGenerator) GenerateContent(_ context.Context, system, message string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.systems = append(g.systems, system)
	g.prompts = append(g.prompts, message)
	if len(g.replies) == 0 {
		return "", errors.New("no reply queued")
	}
	reply := g.replies[0]
	g.replies = g.replies[1:]
	return reply.text, reply.err
}

const waitTimeout = 2 * time.Second

func expectMessage[T ServerMessage](t *testing.T, client *fakeClient) T {
	t.Helper()

	select {
	case msg := <-client.outbox:
		typed, ok := msg.(T)
		if !ok {
			var want T
			t.Fatalf("expected %T, got %T (%+v)", want, msg, msg)
		}
		return typed
	case <-time.After(waitTimeout):
		var want T
		t.Fatalf("timed out waiting for %T", want)
	}
	var zero T
	return zero
}

func expectInstruction(t *testing.T, live *fakeLive) string {
	t.Helper()

	select {
	case text := <-live.texts:
		return text
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for upstream instruction")
	}
	return ""
}

func pcm(ms int) []byte {
	return make([]byte, 2*16000*ms/1000)
}
