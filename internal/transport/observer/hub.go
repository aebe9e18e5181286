package observer

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/citysim/worldcore/internal/core/event"
)

// Hub fans frame notifications out to websocket observers. Broadcasts run
// on the frame goroutine and never block it: a client whose queue is full
// misses the message.
type Hub struct {
	log      *zap.Logger
	queue    int
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[uint64]chan []byte
	closed  bool

	nextID  atomic.Uint64
	dropped atomic.Uint64
}

func NewHub(clientQueue int, log *zap.Logger) *Hub {
	if clientQueue <= 0 {
		clientQueue = 256
	}
	return &Hub{
		log:     log,
		queue:   clientQueue,
		clients: make(map[uint64]chan []byte),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only, see Handler
		},
	}
}

// Attach subscribes the hub to every notification type on bus.
func (h *Hub) Attach(bus *event.Bus) {
	event.Subscribe(bus, func(e event.TierChanged) { h.Broadcast(tierMessage(e)) })
	event.Subscribe(bus, func(e event.ResidencyChanged) { h.Broadcast(residencyMessage(e)) })
	event.Subscribe(bus, func(e event.RegionLoaded) { h.Broadcast(regionLoadedMessage(e)) })
	event.Subscribe(bus, func(e event.RegionUnloaded) { h.Broadcast(regionUnloadedMessage(e)) })
	event.Subscribe(bus, func(e event.EntitiesEvicted) { h.Broadcast(evictedMessage(e)) })
}

// Broadcast encodes m once and queues it for every client.
func (h *Hub) Broadcast(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return
	}
	b, err := json.Marshal(m)
	if err != nil {
		h.log.Error("observer encode failed", zap.String("type", m.Type), zap.Error(err))
		return
	}
	for _, out := range h.clients {
		select {
		case out <- b:
		default:
			h.dropped.Add(1)
		}
	}
}

// Clients returns the number of connected observers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns the number of messages lost to full client queues.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, out := range h.clients {
		close(out)
		delete(h.clients, id)
	}
}

func (h *Hub) join() (uint64, chan []byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, nil, false
	}
	id := h.nextID.Add(1)
	out := make(chan []byte, h.queue)
	h.clients[id] = out
	return id, out, true
}

func (h *Hub) leave(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if out, ok := h.clients[id]; ok {
		close(out)
		delete(h.clients, id)
	}
}

// Handler serves the websocket feed. Observers only receive; anything they
// send is read and discarded so close frames are noticed.
func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		id, out, ok := h.join()
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
			return
		}
		h.log.Info("observer connected", zap.Uint64("client", id), zap.String("remote", r.RemoteAddr))

		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			for {
				_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		reason := "bye"
	loop:
		for {
			select {
			case <-readDone:
				break loop
			case b, ok := <-out:
				if !ok {
					reason = "shutting down"
					break loop
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					break loop
				}
			}
		}

		h.leave(id)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason), time.Now().Add(time.Second))
		h.log.Info("observer disconnected", zap.Uint64("client", id))
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
