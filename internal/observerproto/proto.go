// Package observerproto defines the JSON messages spoken on the
// observer websocket. Schemas for each message live in schemas/ at the
// repository root.
package observerproto

const Version = "1.0"

// SubscribeMsg is the client handshake; it must be the first message on
// the socket and may be resent to change the stats cadence.
// StatsEveryTicks is how often this subscriber receives STATS frames;
// zero or absent keeps the server default.
type SubscribeMsg struct {
	Type            string `json:"type"` // "SUBSCRIBE"
	ProtocolVersion string `json:"protocol_version"`
	StatsEveryTicks int    `json:"stats_every_ticks,omitempty"`
}

// ViewpointMsg moves the streaming center. The server applies the most
// recent viewpoint on its next tick.
type ViewpointMsg struct {
	Type string     `json:"type"` // "VIEWPOINT"
	Pos  [3]float64 `json:"pos"`
}

// StatsMsg is the periodic server push: streaming and storage counters
// for the current tick.
type StatsMsg struct {
	Type            string `json:"type"` // "STATS"
	ProtocolVersion string `json:"protocol_version"`

	Tick      uint64     `json:"tick"`
	Seed      int64      `json:"seed"`
	Viewpoint [3]float64 `json:"viewpoint"`

	Loaded   int `json:"loaded"`
	Pending  int `json:"pending"`
	QueueLen int `json:"queue_len"`
	Chunks   int `json:"chunks"`

	StorageBytes int            `json:"storage_bytes"`
	Variants     map[string]int `json:"variants"`
}
