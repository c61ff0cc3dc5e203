package websocket

import (
	"context"
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"leadlift/jobs"
)

// JobStore is the subset of the job store the handler needs to replay
// history to a new subscriber.
type JobStore interface {
	Get(ctx context.Context, id string) (*jobs.Status, error)
	Logs(ctx context.Context, id string) ([]string, error)
}

// HandleWebSocket streams a job's log to a subscriber: the existing
// backlog first, then live lines until the client disconnects.
func HandleWebSocket(c *websocket.Conn, hub *Hub, store JobStore) {
	defer c.Close()

	jobIDStr := c.Params("id")
	if _, err := uuid.Parse(jobIDStr); err != nil {
		log.Printf("WebSocket connection rejected: invalid job id %q", jobIDStr)
		return
	}

	ctx := context.Background()
	status, err := store.Get(ctx, jobIDStr)
	if err != nil {
		log.Printf("WebSocket connection rejected: unknown job %s", jobIDStr)
		return
	}

	conn := NewConnection(jobIDStr, c)
	hub.RegisterConnection(conn)
	// Unregistering on the read path frees the subscriber the moment the
	// client goes away; the hub tolerates the writer goroutine repeating
	// the unregister when its channel drains.
	defer hub.UnregisterConnection(conn)

	// Replay the backlog before any live lines arrive on Send.
	backlog, err := store.Logs(ctx, jobIDStr)
	if err != nil {
		log.Printf("Failed to load log backlog for job %s: %v", jobIDStr, err)
	}
	for _, line := range backlog {
		if err := c.WriteJSON(WSMessage{Type: "log", JobID: jobIDStr, Content: LogMessage{Line: line}}); err != nil {
			return
		}
	}
	if err := c.WriteJSON(WSMessage{Type: "status", JobID: jobIDStr, Content: StatusMessage{
		Status:        status.Status,
		DownloadReady: status.DownloadReady,
		Error:         status.Error,
	}}); err != nil {
		return
	}

	// Writer: drain the hub's fan-out channel onto the socket.
	go func() {
		defer hub.UnregisterConnection(conn)

		for message := range conn.Send {
			if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error: %v", err)
				return
			}
		}
		_ = c.WriteMessage(websocket.CloseMessage, []byte{})
	}()

	// Reader: subscribers don't send anything meaningful, but reading
	// is what notices the disconnect.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}
