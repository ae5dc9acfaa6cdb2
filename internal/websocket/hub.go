// Package websocket fans job registry changes out to UI WebSocket clients.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/clipdeck/api/internal/jobs"
	"github.com/clipdeck/api/internal/logging"
	"github.com/clipdeck/api/internal/model"
)

const (
	pingInterval = 30 * time.Second
	sendBuffer   = 64
)

// Client is one UI connection following a job
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// BroadcastMessage is an encoded message for the subscribers of a job
type BroadcastMessage struct {
	JobID   string
	Message []byte
}

// Hub maintains UI connections grouped by job id and forwards registry
// snapshots to them.
type Hub struct {
	registry *jobs.Registry
	logger   *slog.Logger

	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	mu sync.RWMutex
}

// NewHub creates a hub and subscribes it to registry changes
func NewHub(registry *jobs.Registry, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	h := &Hub{
		registry:   registry,
		logger:     logging.WithComponent(logger, "ws_hub"),
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
	}
	registry.AddListener(h.onJob)
	return h
}

// Run processes registrations and broadcasts until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "job_id", client.JobID)

			// the current state goes out first
			if job, ok := h.registry.Get(client.JobID); ok {
				if data, err := json.Marshal(MessageFor(job)); err == nil {
					h.deliver(client, data)
				}
			}

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "job_id", client.JobID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			targets := make([]*Client, 0, len(h.clients[msg.JobID]))
			for client := range h.clients[msg.JobID] {
				targets = append(targets, client)
			}
			h.mu.RUnlock()
			for _, client := range targets {
				h.deliver(client, msg.Message)
			}
		}
	}
}

// Register adds a new client. After Run returned the client's Send channel
// is closed right away.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribers returns the number of clients following jobID
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[jobID])
}

// deliver drops a client whose send buffer is full
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		h.logger.Warn("dropping slow client", "job_id", client.JobID)
		h.mu.Lock()
		h.removeLocked(client)
		h.mu.Unlock()
	}
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.clients[client.JobID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.clients, client.JobID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.clients {
		for client := range clients {
			h.removeLocked(client)
		}
	}
}

// onJob is the registry listener. It never blocks the writer.
func (h *Hub) onJob(job model.Job, removed bool) {
	if removed {
		return
	}
	data, err := json.Marshal(MessageFor(job))
	if err != nil {
		h.logger.Error("failed to marshal job message", "job_id", job.ID, "error", err)
		return
	}
	select {
	case h.broadcast <- &BroadcastMessage{JobID: job.ID, Message: data}:
	default:
		h.logger.Warn("broadcast buffer full, dropping update", "job_id", job.ID)
	}
}

// MessageFor renders a job snapshot as the UI message for its status
func MessageFor(job model.Job) interface{} {
	switch job.Status {
	case model.JobStatusSucceeded:
		return model.WSCompleteMessage{
			Type:    model.WSMessageTypeComplete,
			JobID:   job.ID,
			Result:  job.Result,
			Message: job.Message,
		}
	case model.JobStatusFailed, model.JobStatusTimedOut:
		code := "JOB_FAILED"
		if job.Status == model.JobStatusTimedOut {
			code = "JOB_TIMEOUT"
		}
		return model.WSErrorMessage{
			Type:  model.WSMessageTypeError,
			JobID: job.ID,
			Error: model.WSError{
				Code:      code,
				Message:   job.Message,
				Retryable: job.Retryable,
			},
			State: job.Status,
		}
	default:
		return model.WSProgressMessage{
			Type:     model.WSMessageTypeProgress,
			JobID:    job.ID,
			Progress: job.Progress,
			Status:   job.Status,
			Message:  job.Message,
		}
	}
}

// HandleConnection serves one UI connection until it closes
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	client := &Client{
		JobID: jobID,
		Conn:  c,
		Send:  make(chan []byte, sendBuffer),
	}

	pongs := make(chan struct{}, 1)

	h.Register(client)
	defer h.Unregister(client)

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})

		for {
			select {
			case <-pongs:
				if err := c.WriteMessage(websocket.TextMessage, pong); err != nil {
					return
				}

			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read error", "job_id", jobID, "error", err)
			}
			return
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.WSMessageTypePing {
			select {
			case pongs <- struct{}{}:
			default:
			}
		}
	}
}
