package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"orrery/internal/protocol"
)

// dialHub runs the hub behind an httptest server and completes the
// hello/welcome/snapshot handshake over a real websocket.
func dialHub(t *testing.T, h *Hub) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}

	hello, err := protocol.Encode(&protocol.Hello{Version: protocol.Version, Name: "kestrel"})
	if err != nil {
		t.Fatalf("encode hello: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		t.Fatalf("send hello: %v", err)
	}
	for _, want := range []string{protocol.TypeWelcome, protocol.TypeSnapshot} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("handshake read (%s): %v", want, err)
		}
		if _, err := protocol.Decode(data); err != nil {
			t.Fatalf("handshake decode (%s): %v", want, err)
		}
	}
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

// drainUntilClose reads until the server closes the connection, reporting
// whether a malformed rejection was seen on the way out.
func drainUntilClose(t *testing.T, conn *websocket.Conn) bool {
	t.Helper()
	sawReject := false
	for {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return sawReject
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			continue
		}
		if rej, ok := msg.(*protocol.Rejected); ok && rej.Reason == protocol.RejectMalformed {
			sawReject = true
		}
	}
}

func waitForNoFleets(t *testing.T, h *Hub) {
	t.Helper()
	for i := 0; i < 100; i++ {
		h.mu.Lock()
		n := len(h.prop.Fleets())
		h.mu.Unlock()
		if n == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("fleet still registered after forced disconnect")
}

func TestMalformedFrameDisconnects(t *testing.T) {
	h := testHub(t, Config{})
	conn, cleanup := dialHub(t, h)
	defer cleanup()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("this is not json")); err != nil {
		t.Fatalf("send garbage: %v", err)
	}

	if !drainUntilClose(t, conn) {
		t.Fatal("no malformed rejection before the connection closed")
	}
	waitForNoFleets(t, h)
}

func TestNonCommandFrameDisconnects(t *testing.T) {
	h := testHub(t, Config{})
	conn, cleanup := dialHub(t, h)
	defer cleanup()

	// A well-formed frame of the wrong type is as fatal as garbage.
	frame, err := protocol.Encode(&protocol.Ack{Seq: 1})
	if err != nil {
		t.Fatalf("encode ack: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("send ack: %v", err)
	}

	if !drainUntilClose(t, conn) {
		t.Fatal("no malformed rejection before the connection closed")
	}
	waitForNoFleets(t, h)
}
