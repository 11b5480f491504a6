// Package observer exposes a running interpreter's Event Log over a
// WebSocket so external tools (a live dashboard, for instance) can follow a
// workflow run without polling the log file. The watch TUI does not use it;
// it polls the log.
package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cortexflow/wec/internal/wec/eventlog"
)

const (
	// DefaultPort is the default port the Hub listens on.
	DefaultPort = 8765

	// WebSocketEndpoint is the path clients connect to for the live stream.
	WebSocketEndpoint = "/events"

	// HealthEndpoint reports Hub status for a load balancer or operator.
	HealthEndpoint = "/health"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 512
)

// Hub is a WebSocket server that fans out Events to every connected client.
type Hub struct {
	port     int
	upgrader websocket.Upgrader
	server   *http.Server

	historySize int
	history     []eventlog.Event
	historyMu   sync.RWMutex

	clients    map[*client]bool
	clientsMu  sync.RWMutex
	register   chan *client
	unregister chan *client
	broadcast  chan eventlog.Event

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	runMu   sync.RWMutex
}

type client struct {
	conn          *websocket.Conn
	send          chan []byte
	replayHistory bool
}

// Config configures a Hub.
type Config struct {
	Port        int
	HistorySize int
}

// DefaultConfig returns sensible Hub defaults.
func DefaultConfig() Config {
	return Config{Port: DefaultPort, HistorySize: 200}
}

// NewHub creates a Hub that has not yet started listening.
func NewHub(cfg Config) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 200
	}
	return &Hub{
		port:        cfg.Port,
		historySize: cfg.HistorySize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan eventlog.Event, 64),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Publish records ev in the replay history and fans it out to every
// connected client. It never blocks on a slow client.
func (h *Hub) Publish(ev eventlog.Event) {
	h.historyMu.Lock()
	h.history = append(h.history, ev)
	if len(h.history) > h.historySize {
		h.history = h.history[len(h.history)-h.historySize:]
	}
	h.historyMu.Unlock()

	select {
	case h.broadcast <- ev:
	default:
		// Hub backlog full; drop rather than block the interpreter.
	}
}

// Start begins serving WebSocket connections in the background.
func (h *Hub) Start() error {
	h.runMu.Lock()
	if h.running {
		h.runMu.Unlock()
		return fmt.Errorf("observer: hub already running")
	}
	h.running = true
	h.runMu.Unlock()

	h.wg.Add(2)
	go h.runClientManager()
	go h.runBroadcaster()

	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketEndpoint, h.handleWebSocket)
	mux.HandleFunc(HealthEndpoint, h.handleHealth)

	h.server = &http.Server{Addr: fmt.Sprintf(":%d", h.port), Handler: mux}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("observer: server error: %v", err)
		}
	}()

	return nil
}

// Stop shuts the Hub down, closing every client connection.
func (h *Hub) Stop() error {
	h.runMu.Lock()
	if !h.running {
		h.runMu.Unlock()
		return nil
	}
	h.running = false
	h.runMu.Unlock()

	h.cancel()

	h.clientsMu.Lock()
	for c := range h.clients {
		close(c.send)
	}
	h.clients = make(map[*client]bool)
	h.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("observer: shutdown: %w", err)
	}

	h.wg.Wait()
	return nil
}

// ClientCount reports the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) runClientManager() {
	defer h.wg.Done()
	for {
		select {
		case c := <-h.register:
			h.clientsMu.Lock()
			h.clients[c] = true
			h.clientsMu.Unlock()
			if c.replayHistory {
				h.replay(c)
			}
		case c := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				c.conn.Close()
			}
			h.clientsMu.Unlock()
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) runBroadcaster() {
	defer h.wg.Done()
	for {
		select {
		case ev := <-h.broadcast:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			h.clientsMu.RLock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
				}
			}
			h.clientsMu.RUnlock()
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) replay(c *client) {
	h.historyMu.RLock()
	events := append([]eventlog.Event(nil), h.history...)
	h.historyMu.RUnlock()

	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		select {
		case c.send <- data:
		default:
			return
		}
	}
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	replay := r.URL.Query().Get("replay") != "false"

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("observer: upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 256), replayHistory: replay}
	h.register <- c

	h.wg.Add(2)
	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	defer h.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) readPump(c *client) {
	defer h.wg.Done()
	defer func() { h.unregister <- c }()

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *Hub) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.historyMu.RLock()
	historyLen := len(h.history)
	h.historyMu.RUnlock()

	health := struct {
		Status  string `json:"status"`
		Service string `json:"service"`
		Clients int    `json:"clients"`
		History int    `json:"history_size"`
	}{
		Status:  "healthy",
		Service: "wec-observer",
		Clients: h.ClientCount(),
		History: historyLen,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
