package models

// Telemetry record discriminators.
const (
	TelemetryTurn         = "turn"
	TelemetryTool         = "tool"
	TelemetryMemoryUpdate = "memory_update"
	TelemetryError        = "error"
)

// TelemetryRecord is one entry in a run's ordered telemetry log.
// Type selects which of the optional fields are meaningful:
//
//	turn          — Phase, Speaker, LatencyS
//	tool          — Name, Caller, Count or Booked/Requested, LatencyS
//	memory_update — Phase, Speaker, Count
//	error         — Phase, Speaker, Message
type TelemetryRecord struct {
	Type      string   `json:"type"`
	Phase     Phase    `json:"phase,omitempty"`
	Speaker   Speaker  `json:"speaker,omitempty"`
	Name      string   `json:"name,omitempty"`
	Caller    Speaker  `json:"caller,omitempty"`
	Count     int      `json:"count,omitempty"`
	Booked    int      `json:"booked,omitempty"`
	Requested []string `json:"requested,omitempty"`
	Message   string   `json:"message,omitempty"`
	LatencyS  float64  `json:"latency_s,omitempty"`
}
