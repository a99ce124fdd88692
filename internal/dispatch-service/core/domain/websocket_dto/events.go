package websocketdto

import "time"

const (
	TypeCourierLocation = "courier:location"
	TypeCourierOffline  = "courier:offline"
)

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type CourierLocation struct {
	CourierID string    `json:"courierId"`
	FullName  string    `json:"fullName"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	SpeedKmh  *float64  `json:"speed,omitempty"`
	Battery   *int      `json:"battery,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type CourierOffline struct {
	CourierID string    `json:"courierId"`
	Timestamp time.Time `json:"timestamp"`
}
