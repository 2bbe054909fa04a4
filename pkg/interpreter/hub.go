package interpreter

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	defaultPingInterval = 5 * time.Second
	defaultWriteTimeout = 5 * time.Second
)

type wsClient struct {
	conn         *websocket.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
}

// A client that stops reading must not hold up the caller for longer than writeTimeout.
func (c *wsClient) write(msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *wsClient) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// Hub keeps the ws clients for broadcasting live updates.
type Hub struct {
	upgrader websocket.Upgrader
	snapshot func() *MeterUpdate
	mu       sync.RWMutex
	clients  map[*wsClient]bool
	log      logrus.FieldLogger
	// Pings keep idle listeners within their read deadline.
	pingInterval time.Duration
	writeTimeout time.Duration
}

// NewHub creates a hub. snapshot, when set, provides the update sent to a
// client right after it connects.
func NewHub(snapshot func() *MeterUpdate, log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins, the API is meant for the local network
			},
		},
		snapshot:     snapshot,
		clients:      make(map[*wsClient]bool),
		log:          log.WithField("component", "ws"),
		pingInterval: defaultPingInterval,
		writeTimeout: defaultWriteTimeout,
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket upgrade error")
		return
	}

	client := &wsClient{conn: conn, writeTimeout: h.writeTimeout}
	h.add(client)

	// A client that misses pongs for a few ping rounds is gone.
	readTimeout := 3 * h.pingInterval
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	// Send current readings immediately if available
	if h.snapshot != nil {
		if update := h.snapshot(); update != nil {
			if b, err := update.ToJsonBytes(); err == nil {
				client.write(b)
			}
		}
	}

	done := make(chan struct{})
	go h.keepAlive(client, done)

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			close(done)
			h.remove(client)
			return
		}
	}
}

func (h *Hub) keepAlive(client *wsClient, done <-chan struct{}) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := client.ping(); err != nil {
				h.log.WithError(err).Debug("ping failed")
				h.remove(client)
				return
			}
		}
	}
}

func (h *Hub) Broadcast(update *MeterUpdate) {
	b, err := update.ToJsonBytes()
	if err != nil {
		h.log.WithError(err).Error("failed to encode meter update")
		return
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.write(b); err != nil {
			h.remove(client)
		}
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(client *wsClient) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	h.log.Debugf("client connected from %s", client.conn.RemoteAddr())
}

func (h *Hub) remove(client *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()
	if ok {
		client.conn.Close()
		h.log.Debugf("client %s disconnected", client.conn.RemoteAddr())
	}
}
