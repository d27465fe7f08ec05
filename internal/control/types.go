package control

// PingRequest checks daemon liveness.
type PingRequest struct{}

// PingResponse reports liveness and the daemon process id.
type PingResponse struct {
	Pong bool `json:"pong"`
	PID  int  `json:"pid"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents broker runtime state.
type StatusResponse struct {
	Running     bool     `json:"running"`
	SocketPath  string   `json:"socket_path"`
	ControlPath string   `json:"control_path"`
	LockPath    string   `json:"lock_path"`
	JournalPath string   `json:"journal_path"`
	PID         int      `json:"pid"`
	Sessions    int      `json:"sessions"`
	Services    []string `json:"services"`
	StartedAt   string   `json:"started_at"`
	Uptime      string   `json:"uptime"`
}

// ServicesRequest lists registered service names.
type ServicesRequest struct{}

// ServicesResponse contains registered service names, sorted.
type ServicesResponse struct {
	Names []string `json:"names"`
}

// JournalEntry is the wire form of one journaled delivery.
type JournalEntry struct {
	ID         int64  `json:"id"`
	At         string `json:"at"`
	Service    string `json:"service"`
	Direction  string `json:"direction"`
	Kind       string `json:"kind"`
	ObjectType string `json:"object_type"`
	Bytes      int64  `json:"bytes"`
	Peer       string `json:"peer"`
}

// JournalTailRequest fetches recent deliveries, newest first. An empty
// service matches all services.
type JournalTailRequest struct {
	Service string `json:"service"`
	Limit   int    `json:"limit"`
}

// JournalTailResponse contains recent journal entries.
type JournalTailResponse struct {
	Enabled bool           `json:"enabled"`
	Entries []JournalEntry `json:"entries"`
}

// ServiceStats aggregates journal contents for one service.
type ServiceStats struct {
	Total    int64 `json:"total"`
	Inbound  int64 `json:"inbound"`
	Outbound int64 `json:"outbound"`
	Bytes    int64 `json:"bytes"`
}

// JournalStatsRequest fetches per-service delivery totals.
type JournalStatsRequest struct{}

// JournalStatsResponse maps service name to delivery totals.
type JournalStatsResponse struct {
	Enabled bool                    `json:"enabled"`
	Stats   map[string]ServiceStats `json:"stats"`
}

// JournalPurgeRequest removes entries older than the given age. Zero
// days removes nothing.
type JournalPurgeRequest struct {
	Days int `json:"days"`
}

// JournalPurgeResponse reports number of removed entries.
type JournalPurgeResponse struct {
	Removed int64 `json:"removed"`
}

// StopRequest asks the daemon to shut down.
type StopRequest struct{}

// StopResponse indicates the shutdown was initiated.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}
