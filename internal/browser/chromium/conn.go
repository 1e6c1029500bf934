package chromium

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

var errConnClosed = errors.New("devtools connection closed")

// message is any frame exchanged over the DevTools websocket.
type message struct {
	ID        int64           `json:"id,omitempty"`
	Method    string          `json:"method,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *protocolError  `json:"error,omitempty"`
}

type protocolError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *protocolError) Error() string {
	return fmt.Sprintf("devtools error %d: %s", e.Code, e.Message)
}

// eventFunc receives protocol events on the read goroutine.
type eventFunc func(method, sessionID string, params json.RawMessage)

// conn multiplexes DevTools commands and events over one websocket.
type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	nextID  atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan *message
	closed  bool

	done chan struct{}
}

// dial connects to a DevTools websocket endpoint and starts the read loop.
// onEvent and onClose run on the read goroutine; onClose runs exactly once.
func dial(ctx context.Context, wsURL string, onEvent eventFunc, onClose func(error)) (*conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to devtools: %w", err)
	}

	c := &conn{
		ws:      ws,
		pending: make(map[int64]chan *message),
		done:    make(chan struct{}),
	}

	go c.readLoop(onEvent, onClose)

	return c, nil
}

func (c *conn) readLoop(onEvent eventFunc, onClose func(error)) {
	var readErr error
	defer func() {
		c.mu.Lock()
		c.closed = true
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.mu.Unlock()
		close(c.done)
		if onClose != nil {
			onClose(readErr)
		}
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			readErr = err
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("ignoring malformed devtools message", "error", err)
			continue
		}

		if msg.ID != 0 {
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			delete(c.pending, msg.ID)
			c.mu.Unlock()
			if ok {
				ch <- &msg
			}
			continue
		}

		if msg.Method != "" && onEvent != nil {
			onEvent(msg.Method, msg.SessionID, msg.Params)
		}
	}
}

// call sends a command and decodes its result into result, if non-nil.
func (c *conn) call(ctx context.Context, sessionID, method string, params, result any) error {
	id := c.nextID.Add(1)
	ch := make(chan *message, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errConnClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	req := message{ID: id, Method: method, SessionID: sessionID}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			c.forget(id)
			return fmt.Errorf("marshaling %s params: %w", method, err)
		}
		req.Params = raw
	}

	c.writeMu.Lock()
	err := c.ws.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return fmt.Errorf("sending %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return errConnClosed
		}
		if resp.Error != nil {
			return fmt.Errorf("%s: %w", method, resp.Error)
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("decoding %s result: %w", method, err)
			}
		}
		return nil
	}
}

func (c *conn) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// close shuts the websocket down; the read loop exits shortly after.
func (c *conn) close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.ws.Close()
}

// websocketClosedNormally reports whether err is the expected end of a connection.
func websocketClosedNormally(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, net.ErrClosed)
}
