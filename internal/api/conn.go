package api

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/frymyresume/interviewd/internal/interview"
)

const defaultWriteTimeout = 10 * time.Second

// wsConn adapts a WebSocket to interview.ClientConn. Writes are serialized
// because gorilla/websocket allows a single concurrent writer.
type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newWSConn(ws *websocket.Conn, writeTimeout time.Duration) *wsConn {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &wsConn{ws: ws, writeTimeout: writeTimeout}
}

func (c *wsConn) ReadHandshake() (interview.Handshake, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return interview.Handshake{}, err
	}
	return interview.DecodeHandshake(data)
}

func (c *wsConn) ReadMessage() (interview.ClientMessage, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return interview.DecodeClientMessage(data)
}

func (c *wsConn) WriteMessage(msg interview.ServerMessage) error {
	data, err := interview.EncodeServerMessage(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		// WriteControl may run concurrently with WriteMessage.
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
