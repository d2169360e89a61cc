package world

// EventSink receives chunk lifecycle events for diagnostics. Writes
// happen on the owning goroutine; sinks must not call back into the
// world.
type EventSink interface {
	Write(v any) error
}

// StreamEvent is one chunk lifecycle transition, shaped for the JSONL
// stream log.
type StreamEvent struct {
	Type  string `json:"type"` // "loaded" | "evicted" | "gen_failed"
	Tick  uint64 `json:"tick"`
	Coord uint64 `json:"coord"`
	X     int32  `json:"x"`
	Y     int32  `json:"y"`
	Z     int32  `json:"z"`
	Err   string `json:"err,omitempty"`
}
