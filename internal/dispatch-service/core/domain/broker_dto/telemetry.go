package brokerdto

// Payloads published on the telemetry topic exchange. The credential travels
// inside the payload, not on the connection: the broker connection is shared
// and anonymous, every message authenticates itself.

// LocationMessage ← {prefix}.{courierId}.location
type LocationMessage struct {
	Token    string   `json:"token"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	Accuracy *float64 `json:"accuracy,omitempty"`
	SpeedKmh *float64 `json:"speed,omitempty"`
	Battery  *int     `json:"battery,omitempty"` // 0-100
	Ts       *int64   `json:"ts,omitempty"`      // unix millis
}

// PresenceMessage ← {prefix}.{courierId}.presence
type PresenceMessage struct {
	Token  string `json:"token"`
	Status string `json:"status"` // online | offline
	Ts     *int64 `json:"ts,omitempty"`
}
