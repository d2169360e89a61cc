package observer

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"voxelforge/internal/observerproto"
)

// Server is the observer websocket endpoint. It never touches the
// world directly: the tick loop pushes stats in via Publish and reads
// the latest requested viewpoint out via Viewpoint.
type Server struct {
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	viewpoint atomic.Pointer[[3]float64]

	mu   sync.Mutex
	subs map[uint64]*subscriber
}

// Stats cadence in ticks when SUBSCRIBE does not request one.
const defaultStatsEvery = 20

type subscriber struct {
	ch    chan []byte
	every int
}

func NewServer(logger *log.Logger) *Server {
	return &Server{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: make(map[uint64]*subscriber),
	}
}

// Viewpoint returns the most recent VIEWPOINT a client sent, if any.
func (s *Server) Viewpoint() ([3]float64, bool) {
	p := s.viewpoint.Load()
	if p == nil {
		return [3]float64{}, false
	}
	return *p, true
}

// Publish offers the stats message to every subscriber whose cadence
// divides its tick. Slow clients drop messages rather than stall the
// caller.
func (s *Server) Publish(msg observerproto.StatsMsg) {
	msg.Type = "STATS"
	msg.ProtocolVersion = observerproto.Version
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) == 0 {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	for _, sub := range s.subs {
		if msg.Tick%uint64(sub.every) != 0 {
			continue
		}
		select {
		case sub.ch <- b:
		default:
		}
	}
}

func (s *Server) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Server) subscribe(every int) (uint64, *subscriber) {
	if every <= 0 {
		every = defaultStatsEvery
	}
	id := s.nextID.Add(1)
	sub := &subscriber{ch: make(chan []byte, 8), every: every}
	s.mu.Lock()
	s.subs[id] = sub
	s.mu.Unlock()
	return id, sub
}

func (s *Server) setCadence(id uint64, every int) {
	if every <= 0 {
		every = defaultStatsEvery
	}
	s.mu.Lock()
	if sub, ok := s.subs[id]; ok {
		sub.every = every
	}
	s.mu.Unlock()
}

func (s *Server) unsubscribe(id uint64) {
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var hello observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &hello); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if hello.Type != "SUBSCRIBE" || hello.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		id, sub := s.subscribe(hello.StatsEveryTicks)
		defer s.unsubscribe(id)
		s.log.Printf("observer %d subscribed remote=%s", id, r.RemoteAddr)
		defer s.log.Printf("observer %d disconnected", id)

		// Writer goroutine.
		done := make(chan struct{})
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-done:
					writeErr <- nil
					return
				case b := <-sub.ch:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: VIEWPOINT moves the streaming center, repeated
		// SUBSCRIBEs retune the stats cadence.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var head struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(msg, &head); err != nil {
				continue
			}
			switch head.Type {
			case "VIEWPOINT":
				var vp observerproto.ViewpointMsg
				if err := json.Unmarshal(msg, &vp); err != nil {
					continue
				}
				pos := vp.Pos
				s.viewpoint.Store(&pos)
			case "SUBSCRIBE":
				var re observerproto.SubscribeMsg
				if err := json.Unmarshal(msg, &re); err != nil {
					continue
				}
				s.setCadence(id, re.StatsEveryTicks)
			}
		}

		close(done)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
