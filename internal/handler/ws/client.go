package ws

import (
	"encoding/json"
	"sync"
	"time"

	"StockPulse/internal/usecase"
	xhttp "StockPulse/pkg/http"
	applogger "StockPulse/pkg/logger"

	"github.com/gorilla/websocket"
)

const maxMessageSize = 4 << 10

// Options are the per-connection timings.
type Options struct {
	WriteTimeout time.Duration
	PongTimeout  time.Duration
	PingInterval time.Duration
	SendBuffer   int
}

func (o *Options) normalize() {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongTimeout {
		o.PingInterval = o.PongTimeout * 9 / 10
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 16
	}
}

// Client is one WebSocket connection bound to a live session.
type Client struct {
	id      string
	conn    *websocket.Conn
	hub     *Hub
	session *usecase.LiveSession
	opts    Options
	l       *applogger.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// enqueue is the session's send func. A full buffer drops the message
// rather than blocking the fetch or the hub.
func (c *Client) enqueue(m usecase.LiveMessage) {
	b, err := json.Marshal(m)
	if err != nil {
		c.l.Error("marshal live message failed", applogger.String("type", m.Type), applogger.Error(err))
		return
	}
	select {
	case <-c.done:
	case c.send <- b:
	default:
		c.l.Warn("send buffer full, message dropped", applogger.String("type", m.Type))
	}
}

// close signals writePump, which sends the close frame and then closes
// conn. readPump unblocks once conn is closed.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump decodes commands until the connection drops.
func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	})

	for {
		_, b, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.l.Warn("websocket read failed", applogger.Error(err))
			}
			return
		}
		var cmd usecase.LiveCommand
		if err := json.Unmarshal(b, &cmd); err != nil {
			c.enqueue(usecase.LiveMessage{Type: usecase.LiveError, Error: &usecase.LiveErrorBody{Code: "ERR_DECODE", Message: "malformed message"}})
			continue
		}
		if verrs := xhttp.ValidateStruct(&cmd); len(verrs) > 0 {
			c.enqueue(usecase.LiveMessage{Type: usecase.LiveError, Error: &usecase.LiveErrorBody{Code: "ERR_VALIDATION", Message: verrs[0].Message}})
			continue
		}
		c.session.Handle(cmd)
	}
}

// writePump is the only writer on conn and the only one to close it.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.opts.WriteTimeout))
			return
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
