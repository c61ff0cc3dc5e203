package websocket

// WSMessage is the envelope for every frame sent to log subscribers
type WSMessage struct {
	Type    string      `json:"type"` // "log", "status"
	JobID   string      `json:"job_id"`
	Content interface{} `json:"content,omitempty"`
}

// LogMessage carries one job log line
type LogMessage struct {
	Line string `json:"line"`
}

// StatusMessage mirrors the polling status payload for push delivery
type StatusMessage struct {
	Status        string `json:"status"`
	DownloadReady bool   `json:"download_ready"`
	Error         string `json:"error,omitempty"`
}
