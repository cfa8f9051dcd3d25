package hub

import (
	"context"
	"log/slog"
	"sync"

	"bikeflow/internal/domain"
)

// Client is one connected map. It watches a set of tiles (its viewport)
// under its own time filter.
type Client struct {
	ID     string
	Send   chan []byte
	tiles  map[string]struct{}
	filter domain.TimeFilter
	closed bool
	mu     sync.RWMutex
}

func NewClient(id string, bufferSize int) *Client {
	return &Client{
		ID:     id,
		Send:   make(chan []byte, bufferSize),
		tiles:  make(map[string]struct{}),
		filter: domain.AnyTime,
	}
}

func (c *Client) HasTile(tileID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.tiles[tileID]
	return ok
}

func (c *Client) AddTiles(tileIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range tileIDs {
		c.tiles[id] = struct{}{}
	}
}

func (c *Client) RemoveTiles(tileIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range tileIDs {
		delete(c.tiles, id)
	}
}

func (c *Client) GetTiles() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tiles := make([]string, 0, len(c.tiles))
	for id := range c.tiles {
		tiles = append(tiles, id)
	}
	return tiles
}

func (c *Client) Filter() domain.TimeFilter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter
}

func (c *Client) SetFilter(f domain.TimeFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = f
}

// Deliver queues data without blocking. It reports false when the buffer is
// full or the client has been closed.
func (c *Client) Deliver(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// Renderer builds the snapshot message for a client's filter and tiles.
type Renderer func(filter domain.TimeFilter, tileIDs []string) ([]byte, error)

type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	refresh    chan Renderer

	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		refresh:    make(chan Renderer, 4),
		logger:     logger.With("component", "hub"),
	}
}

// Run serves registrations until ctx is done. Refreshes render on their own
// goroutine, outside the client lock.
func (h *Hub) Run(ctx context.Context) {
	go h.refreshLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.ID, "total", total)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) refreshLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case render := <-h.refresh:
			h.fanout(render)
		}
	}
}

func (h *Hub) Subscribe(client *Client, tileIDs []string) {
	client.AddTiles(tileIDs)
}

func (h *Hub) Unsubscribe(client *Client, tileIDs []string) {
	client.RemoveTiles(tileIDs)
}

// Refresh queues a fresh snapshot for every client, each rendered for that
// client's own filter and tiles.
func (h *Hub) Refresh(render Renderer) {
	select {
	case h.refresh <- render:
	default:
		h.logger.Warn("refresh channel full, dropping refresh")
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) snapshotClients() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

func (h *Hub) fanout(render Renderer) {
	clients := h.snapshotClients()

	sent := 0
	for _, client := range clients {
		tiles := client.GetTiles()
		if len(tiles) == 0 {
			continue
		}

		data, err := render(client.Filter(), tiles)
		if err != nil {
			h.logger.Debug("render failed", "client_id", client.ID, "error", err)
			continue
		}

		if client.Deliver(data) {
			sent++
		} else {
			h.logger.Debug("client send buffer full", "client_id", client.ID)
		}
	}

	h.logger.Debug("refresh fanned out", "clients", len(clients), "sent", sent)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	client.close()
	h.logger.Debug("client unregistered", "client_id", client.ID, "total", len(h.clients))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.close()
	}
	h.clients = make(map[*Client]struct{})
}
