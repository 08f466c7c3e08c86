// Package websocket implements a WebSocket transport: a duplex connection
// state machine (Connecting, Open, Closing, Closed) exchanging Text,
// Binary, Ping, Pong, and Close frames.
//
// The close/ping/pong control-frame handling is grounded on
// air's Response.WebSocket in other_examples (its SetCloseHandler,
// SetPingHandler, SetPongHandler trio), adapted from the server-side
// Upgrader to a client-side Dialer.
package websocket

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"netstack/internal/errs"
	"netstack/internal/types"
)

// State is one of the four states a WebSocket connection passes through.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

// MessageKind tags the frame kind delivered on Incoming.
type MessageKind int

const (
	MessageText MessageKind = iota
	MessageBinary
	MessagePing
	MessagePong
)

// Message is one frame received from the peer.
type Message struct {
	Kind MessageKind
	Data []byte
}

// Conn is a single duplex WebSocket connection.
type Conn struct {
	conn *websocket.Conn

	mu    sync.Mutex
	state State

	Incoming <-chan Message
	incoming chan Message

	pingHandler func(appData string)
	pongHandler func(appData string)
	closeCode   int
	closeReason string
}

// Dial opens a WebSocket connection to u, which must use the ws or wss
// scheme, optionally negotiating subprotocols.
func Dial(ctx context.Context, u *url.URL, headers *types.Header, subprotocols []string) (*Conn, error) {
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, errs.InvalidURL("websocket URL must use ws or wss scheme")
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		Subprotocols:     subprotocols,
	}

	httpHeaders := http.Header{}
	if headers != nil {
		for _, name := range headers.Names() {
			for _, v := range headers.Values(name) {
				httpHeaders.Add(name, v)
			}
		}
	}

	wsConn, _, err := dialer.DialContext(ctx, u.String(), httpHeaders)
	if err != nil {
		return nil, errs.WebSocket("websocket handshake failed", err)
	}

	c := &Conn{
		conn:     wsConn,
		state:    StateOpen,
		incoming: make(chan Message, 32),
	}
	c.Incoming = c.incoming

	wsConn.SetCloseHandler(func(code int, reason string) error {
		c.mu.Lock()
		c.state = StateClosed
		c.closeCode, c.closeReason = code, reason
		c.mu.Unlock()
		return nil
	})
	wsConn.SetPingHandler(func(appData string) error {
		if c.pingHandler != nil {
			c.pingHandler(appData)
		}
		return wsConn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})
	wsConn.SetPongHandler(func(appData string) error {
		if c.pongHandler != nil {
			c.pongHandler(appData)
		}
		return nil
	})

	go c.readLoop()

	return c, nil
}

func (c *Conn) readLoop() {
	defer close(c.incoming)
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.state != StateClosed {
				c.state = StateClosed
			}
			c.mu.Unlock()
			return
		}

		var kind MessageKind
		switch msgType {
		case websocket.TextMessage:
			kind = MessageText
		case websocket.BinaryMessage:
			kind = MessageBinary
		default:
			continue
		}
		c.incoming <- Message{Kind: kind, Data: data}
	}
}

// State reports the connection's current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SendText writes a text frame. Only permitted while the connection is Open.
func (c *Conn) SendText(s string) error {
	if c.State() != StateOpen {
		return errs.WebSocket("cannot send on a connection that is not open", nil)
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(s))
}

// SendBinary writes a binary frame. Only permitted while the connection is Open.
func (c *Conn) SendBinary(b []byte) error {
	if c.State() != StateOpen {
		return errs.WebSocket("cannot send on a connection that is not open", nil)
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, b)
}

// Ping sends a ping control frame.
func (c *Conn) Ping(appData []byte) error {
	if c.State() != StateOpen {
		return errs.WebSocket("cannot ping a connection that is not open", nil)
	}
	return c.conn.WriteControl(websocket.PingMessage, appData, time.Now().Add(5*time.Second))
}

// OnPing/OnPong register handlers invoked when the peer sends a control frame.
func (c *Conn) OnPing(h func(appData string)) { c.pingHandler = h }
func (c *Conn) OnPong(h func(appData string)) { c.pongHandler = h }

// Close performs the WebSocket closing handshake with the given close code
// and reason, transitioning Open -> Closing -> Closed.
func (c *Conn) Close(code int, reason string) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosing
	c.mu.Unlock()

	err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second),
	)

	closeErr := c.conn.Close()

	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()

	if err != nil {
		return errs.WebSocket("close handshake failed", err)
	}
	return closeErr
}

// CloseInfo returns the close code and reason the peer sent, if any.
func (c *Conn) CloseInfo() (code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closeReason
}
