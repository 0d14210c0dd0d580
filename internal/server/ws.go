package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"orrery/internal/protocol"
)

const (
	readWait       = 60 * time.Second
	handshakeWait  = 10 * time.Second
	maxFrameLength = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the connection, runs the hello/welcome handshake and then
// the read loop. It returns when the client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c.SetReadLimit(maxFrameLength)

	hello, err := readHello(c)
	if err != nil {
		h.log.Warn("handshake failed", "remote", r.RemoteAddr, "error", err)
		writeReject(c, protocol.RejectMalformed)
		c.Close()
		return
	}
	if hello.Version != protocol.Version {
		h.log.Warn("protocol version mismatch", "remote", r.RemoteAddr, "got", hello.Version)
		writeReject(c, protocol.RejectVersionMismatch)
		c.Close()
		return
	}

	sub, err := h.Join(c, hello.Name)
	if err != nil {
		h.log.Error("join failed", "remote", r.RemoteAddr, "error", err)
		c.Close()
		return
	}
	defer h.Leave(sub.player)

	for {
		c.SetReadDeadline(time.Now().Add(readWait))
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("read failed", "player", sub.player, "error", err)
			}
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			// Malformed frames are fatal to the connection: reject and
			// drop, never limp along with a client that speaks garbage.
			h.log.Warn("malformed frame, disconnecting", "player", sub.player, "error", err)
			h.reject(sub, 0, h.Tick(), protocol.RejectMalformed)
			return
		}
		cmd, ok := msg.(*protocol.Command)
		if !ok {
			h.log.Warn("unexpected message type, disconnecting", "player", sub.player, "type", fmt.Sprintf("%T", msg))
			h.reject(sub, 0, h.Tick(), protocol.RejectMalformed)
			return
		}
		h.Enqueue(sub, *cmd)
	}
}

func readHello(c *websocket.Conn) (*protocol.Hello, error) {
	c.SetReadDeadline(time.Now().Add(handshakeWait))
	_, data, err := c.ReadMessage()
	if err != nil {
		return nil, err
	}
	msg, err := protocol.Decode(data)
	if err != nil {
		return nil, err
	}
	hello, ok := msg.(*protocol.Hello)
	if !ok {
		return nil, errors.New("first frame is not a hello")
	}
	return hello, nil
}

func writeReject(c *websocket.Conn, reason string) {
	frame, err := protocol.Encode(&protocol.Rejected{Reason: reason})
	if err != nil {
		return
	}
	c.SetWriteDeadline(time.Now().Add(writeWait))
	c.WriteMessage(websocket.TextMessage, frame)
}
