package client

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"orrery/internal/protocol"
)

const (
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
)

// Client owns the websocket transport for one Session: dialing, the read
// loop, and reconnection with exponential backoff.
type Client struct {
	url  string
	name string
	log  *slog.Logger

	Session *Session

	mu     sync.Mutex
	conn   *ws.Conn
	closed bool
	done   chan struct{}

	writeMu sync.Mutex // serializes frames; the websocket allows one writer
}

// NewClient prepares a client for the given websocket URL. Connect starts
// the transport.
func NewClient(url, name string, log *slog.Logger) *Client {
	c := &Client{
		url:  url,
		name: name,
		log:  log,
		done: make(chan struct{}),
	}
	c.Session = NewSession(log, c.write)
	return c
}

// Connect dials the server, sends the hello and starts the read loop.
func (c *Client) Connect() error {
	conn, _, err := ws.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.sendHello(); err != nil {
		conn.Close()
		return err
	}
	go c.readLoop()
	return nil
}

// Disconnect shuts the transport down. The session ends up Disconnected and
// will not reconnect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.Session.markDisconnected()
}

func (c *Client) sendHello() error {
	frame, err := protocol.Encode(&protocol.Hello{Version: protocol.Version, Name: c.name})
	if err != nil {
		return err
	}
	return c.write(frame)
}

func (c *Client) write(data []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("not connected")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

func (c *Client) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.log.Warn("websocket read error", "error", err)
			c.Session.markDisconnected()
			go c.reconnect()
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			c.log.Debug("discarding undecodable frame", "error", err)
			continue
		}
		c.Session.Handle(msg)
	}
}

// reconnect re-establishes the connection with exponential backoff and
// replays the hello; the server answers with a fresh welcome and snapshot.
func (c *Client) reconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		default:
		}

		c.log.Info("reconnecting", "attempt", attempt, "backoff", backoff)
		time.Sleep(backoff)

		conn, _, err := ws.DefaultDialer.Dial(c.url, nil)
		if err != nil {
			c.log.Warn("reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.Session.markReconnecting(c.write)

		if err := c.sendHello(); err != nil {
			c.log.Warn("hello replay failed", "error", err)
			conn.Close()
			continue
		}
		go c.readLoop()
		return
	}
	c.log.Error("giving up after repeated reconnect failures")
}
