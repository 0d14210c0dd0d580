package client

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"

	"orrery/internal/protocol"
)

func TestConcurrentWritesStayIntact(t *testing.T) {
	received := make(chan []byte, 64)
	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- data
		}
	}))
	defer srv.Close()

	c := NewClient("ws"+strings.TrimPrefix(srv.URL, "http"), "kestrel", testLogger())
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	// Commands may be issued from any goroutine; the transport must
	// serialize them so frames never interleave on the wire.
	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		seq := uint64(i + 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			frame, err := protocol.Encode(&protocol.Command{Seq: seq, FleetID: "f1"})
			if err != nil {
				t.Errorf("encode %d: %v", seq, err)
				return
			}
			if err := c.write(frame); err != nil {
				t.Errorf("write %d: %v", seq, err)
			}
		}()
	}
	wg.Wait()

	// The hello plus one frame per writer, each individually decodable.
	timeout := time.After(5 * time.Second)
	for seen := 0; seen < writers+1; seen++ {
		select {
		case data := <-received:
			if _, err := protocol.Decode(data); err != nil {
				t.Fatalf("server received corrupt frame: %v", err)
			}
		case <-timeout:
			t.Fatalf("received %d frames, want %d", seen, writers+1)
		}
	}
}
