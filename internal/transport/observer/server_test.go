package observer

import (
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voxelforge/internal/observerproto"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func dialObserver(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	return conn
}

func waitSubscribers(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.SubscriberCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber count never reached %d", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readStats(t *testing.T, conn *websocket.Conn) observerproto.StatsMsg {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg observerproto.StatsMsg
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read stats: %v", err)
	}
	if msg.Type != "STATS" || msg.ProtocolVersion != observerproto.Version {
		t.Fatalf("unexpected frame %q v%q", msg.Type, msg.ProtocolVersion)
	}
	return msg
}

func TestWSHandler_StatsCadencePerSubscriber(t *testing.T) {
	s := NewServer(discardLogger())
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	conn := dialObserver(t, srv)
	defer conn.Close()

	err := conn.WriteJSON(observerproto.SubscribeMsg{
		Type:            "SUBSCRIBE",
		ProtocolVersion: observerproto.Version,
		StatsEveryTicks: 2,
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitSubscribers(t, s, 1)

	for tick := uint64(1); tick <= 4; tick++ {
		s.Publish(observerproto.StatsMsg{Tick: tick})
	}

	if got := readStats(t, conn).Tick; got != 2 {
		t.Fatalf("first frame tick=%d, want 2", got)
	}
	if got := readStats(t, conn).Tick; got != 4 {
		t.Fatalf("second frame tick=%d, want 4", got)
	}
}

func TestWSHandler_ResubscribeChangesCadence(t *testing.T) {
	s := NewServer(discardLogger())
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	conn := dialObserver(t, srv)
	defer conn.Close()

	err := conn.WriteJSON(observerproto.SubscribeMsg{
		Type:            "SUBSCRIBE",
		ProtocolVersion: observerproto.Version,
		StatsEveryTicks: 5,
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitSubscribers(t, s, 1)

	err = conn.WriteJSON(observerproto.SubscribeMsg{
		Type:            "SUBSCRIBE",
		ProtocolVersion: observerproto.Version,
		StatsEveryTicks: 1,
	})
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}

	// Wait for the reader goroutine to apply the new cadence.
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		applied := false
		for _, sub := range s.subs {
			applied = sub.every == 1
		}
		s.mu.Unlock()
		if applied {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("resubscribe cadence never applied")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Publish(observerproto.StatsMsg{Tick: 3})
	if got := readStats(t, conn).Tick; got != 3 {
		t.Fatalf("frame tick=%d, want 3", got)
	}
}

func TestWSHandler_ViewpointMovesCenter(t *testing.T) {
	s := NewServer(discardLogger())
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	conn := dialObserver(t, srv)
	defer conn.Close()

	err := conn.WriteJSON(observerproto.SubscribeMsg{
		Type:            "SUBSCRIBE",
		ProtocolVersion: observerproto.Version,
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitSubscribers(t, s, 1)

	if _, ok := s.Viewpoint(); ok {
		t.Fatalf("viewpoint set before any VIEWPOINT frame")
	}
	err = conn.WriteJSON(observerproto.ViewpointMsg{Type: "VIEWPOINT", Pos: [3]float64{16, 0, -32}})
	if err != nil {
		t.Fatalf("viewpoint: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if pos, ok := s.Viewpoint(); ok {
			if pos != [3]float64{16, 0, -32} {
				t.Fatalf("viewpoint %v, want [16 0 -32]", pos)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("viewpoint never applied")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
