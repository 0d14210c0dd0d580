package server

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"orrery/internal/sim"
)

const writeWait = 5 * time.Second

// conn is the subset of *websocket.Conn the hub writes through. Tests
// substitute an in-memory implementation.
type conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type subscriber struct {
	player  sim.PlayerID
	fleet   sim.FleetID
	conn    conn
	mu      sync.Mutex
	limiter *rate.Limiter
}

func newSubscriber(player sim.PlayerID, fleet sim.FleetID, c conn, cmdRate rate.Limit, burst int) *subscriber {
	return &subscriber{
		player:  player,
		fleet:   fleet,
		conn:    c,
		limiter: rate.NewLimiter(cmdRate, burst),
	}
}

// WriteMessage sends one websocket frame guarded by the subscriber's mutex
// and a write deadline.
func (s *subscriber) WriteMessage(data []byte) error {
	if s == nil || s.conn == nil {
		return errors.New("subscriber closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}
