package websocket

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"leadlift/metrics"
)

// Connection represents one WebSocket subscriber watching a job's log
type Connection struct {
	ID    string
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Hub manages WebSocket connections and fan-out of job log lines
type Hub struct {
	connections map[string]*Connection
	jobSubs     map[string]map[string]*Connection // jobID -> connID -> connection
	register    chan *Connection
	unregister  chan *Connection
	mu          sync.RWMutex
	done        chan struct{}
	closeOnce   sync.Once
}

// NewHub creates a new Hub instance for managing WebSocket connections
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		jobSubs:     make(map[string]map[string]*Connection),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		done:        make(chan struct{}),
	}
}

// Close gracefully shuts down the hub. The register/unregister channels
// stay open so handlers racing the shutdown never send on a closed
// channel; they bail out through done instead.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

// RegisterConnection schedules a connection to be added to the hub.
func (h *Hub) RegisterConnection(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
	}
}

// UnregisterConnection schedules a connection to be removed from the hub.
// Safe to call more than once for the same connection.
func (h *Hub) UnregisterConnection(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Run starts the Hub's main event loop for managing connections
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return
		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			if h.jobSubs[conn.JobID] == nil {
				h.jobSubs[conn.JobID] = make(map[string]*Connection)
			}
			h.jobSubs[conn.JobID][conn.ID] = conn
			count := len(h.connections)
			h.mu.Unlock()
			metrics.UpdateWebSocketConnections(count)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, exists := h.connections[conn.ID]; exists {
				delete(h.connections, conn.ID)
				if subs := h.jobSubs[conn.JobID]; subs != nil {
					delete(subs, conn.ID)
					if len(subs) == 0 {
						delete(h.jobSubs, conn.JobID)
					}
				}
				close(conn.Send)
			}
			count := len(h.connections)
			h.mu.Unlock()
			metrics.UpdateWebSocketConnections(count)
		}
	}
}

// BroadcastLog pushes one log line to every subscriber of a job.
func (h *Hub) BroadcastLog(jobID, line string) {
	h.broadcastToJob(jobID, WSMessage{
		Type:    "log",
		JobID:   jobID,
		Content: LogMessage{Line: line},
	})
}

// BroadcastStatus pushes a status change to every subscriber of a job.
func (h *Hub) BroadcastStatus(jobID, status string, downloadReady bool, errMsg string) {
	h.broadcastToJob(jobID, WSMessage{
		Type:  "status",
		JobID: jobID,
		Content: StatusMessage{
			Status:        status,
			DownloadReady: downloadReady,
			Error:         errMsg,
		},
	})
}

func (h *Hub) broadcastToJob(jobID string, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conn := range h.jobSubs[jobID] {
		select {
		case conn.Send <- data:
		default:
			// Slow subscriber; dropping beats blocking the job.
		}
	}
}

// NewConnection builds a Connection for a job log subscriber.
func NewConnection(jobID string, conn *websocket.Conn) *Connection {
	return &Connection{
		ID:    uuid.New().String(),
		JobID: jobID,
		Conn:  conn,
		Send:  make(chan []byte, 256),
	}
}
