package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"bikeflow/internal/domain"
	"bikeflow/internal/hub"
	"bikeflow/internal/traffic"
)

const renderTimeout = 10 * time.Second

type WSHandler struct {
	hub      *hub.Hub
	traffic  *traffic.Service
	zoom     int
	debounce time.Duration
	logger   *slog.Logger
}

func NewWSHandler(h *hub.Hub, svc *traffic.Service, zoom int, debounce time.Duration, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		hub:      h,
		traffic:  svc,
		zoom:     zoom,
		debounce: debounce,
		logger:   logger.With("handler", "websocket"),
	}
}

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubscribePayload names tiles directly or a viewport to cover.
type SubscribePayload struct {
	TileIDs []string            `json:"tileIds"`
	BBox    *domain.BoundingBox `json:"bbox,omitempty"`
}

type UnsubscribePayload struct {
	TileIDs []string `json:"tileIds"`
}

type FilterPayload struct {
	Minutes *domain.TimeFilter `json:"minutes"`
}

type SnapshotMessage struct {
	Type    string        `json:"type"`
	Payload *traffic.View `json:"payload"`
}

type PongMessage struct {
	Type string `json:"type"`
}

type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// session is the per-connection state around a hub client.
type session struct {
	client *hub.Client

	mu      sync.Mutex
	pending *time.Timer
	done    bool
}

func (s *session) schedule(delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	if s.pending != nil {
		s.pending.Stop()
	}
	s.pending = time.AfterFunc(delay, fn)
}

func (s *session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	if s.pending != nil {
		s.pending.Stop()
	}
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	clientID := uuid.New().String()
	sess := &session{client: hub.NewClient(clientID, 256)}

	h.hub.Register(sess.client)
	ServerStats.IncWSConnections()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, conn, sess.client)

	h.readLoop(ctx, conn, sess)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *session) {
	client := sess.client
	defer func() {
		sess.stop()
		h.hub.Unregister(client)
		ServerStats.DecWSConnections()
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				h.logger.Debug("websocket read error", "client_id", client.ID, "error", err)
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}
		ServerStats.IncWSMessagesIn()

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("invalid message format", "client_id", client.ID, "error", err)
			continue
		}

		switch msg.Type {
		case "subscribe":
			var payload SubscribePayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				continue
			}
			tiles := payload.TileIDs
			if !hub.ValidTileIDs(tiles, h.zoom) {
				h.sendError(client, "invalid tile id")
				continue
			}
			if payload.BBox != nil {
				covered, ok := hub.ViewportTiles(*payload.BBox, h.zoom)
				if !ok {
					h.sendError(client, "viewport too large")
					continue
				}
				tiles = append(tiles, covered...)
			}
			if len(tiles) > 0 {
				if len(tiles)+len(client.GetTiles()) > hub.MaxViewportTiles {
					h.sendError(client, "too many tiles")
					continue
				}
				h.hub.Subscribe(client, tiles)
				h.sendSnapshot(ctx, client)
			}

		case "unsubscribe":
			var payload UnsubscribePayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				continue
			}
			if len(payload.TileIDs) > 0 {
				h.hub.Unsubscribe(client, payload.TileIDs)
			}

		case "filter":
			var payload FilterPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				continue
			}
			if payload.Minutes == nil {
				h.sendError(client, "missing minutes")
				continue
			}
			if !payload.Minutes.Valid() {
				h.sendError(client, domain.ErrInvalidTimeFilter.Error())
				continue
			}
			h.applyFilter(ctx, sess, *payload.Minutes)

		case "ping":
			h.sendPong(client)
		}
	}
}

// applyFilter switches the client's filter and pushes a snapshot. With a
// debounce configured only the last filter of a burst is applied.
func (h *WSHandler) applyFilter(ctx context.Context, sess *session, filter domain.TimeFilter) {
	apply := func() {
		sess.client.SetFilter(filter)
		h.sendSnapshot(ctx, sess.client)
	}
	if h.debounce <= 0 {
		apply()
		return
	}
	sess.schedule(h.debounce, apply)
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
			ServerStats.IncWSMessagesOut()

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// Render builds a snapshot message for filter restricted to tileIDs. It is
// passed to the hub when the dataset is reloaded.
func (h *WSHandler) Render(filter domain.TimeFilter, tileIDs []string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
	defer cancel()
	return h.render(ctx, filter, tileIDs)
}

func (h *WSHandler) render(ctx context.Context, filter domain.TimeFilter, tileIDs []string) ([]byte, error) {
	view, err := h.traffic.View(ctx, filter)
	if err != nil {
		return nil, err
	}
	return json.Marshal(SnapshotMessage{
		Type:    "snapshot",
		Payload: view.InTiles(tileIDs),
	})
}

func (h *WSHandler) sendSnapshot(ctx context.Context, client *hub.Client) {
	data, err := h.render(ctx, client.Filter(), client.GetTiles())
	if err != nil {
		h.logger.Debug("snapshot unavailable", "client_id", client.ID, "error", err)
		h.sendError(client, err.Error())
		return
	}

	if !client.Deliver(data) {
		h.logger.Debug("failed to send snapshot, buffer full", "client_id", client.ID)
	}
}

func (h *WSHandler) sendPong(client *hub.Client) {
	data, err := json.Marshal(PongMessage{Type: "pong"})
	if err != nil {
		return
	}
	client.Deliver(data)
}

func (h *WSHandler) sendError(client *hub.Client, message string) {
	data, err := json.Marshal(ErrorMessage{Type: "error", Error: message})
	if err != nil {
		return
	}
	client.Deliver(data)
}
