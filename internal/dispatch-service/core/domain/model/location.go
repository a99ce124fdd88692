package model

import "time"

// LocationSample is a courier's raw position history entry. Append-only.
type LocationSample struct {
	ID         int64
	CourierID  string // uuid
	Latitude   float64
	Longitude  float64
	Accuracy   *float64
	SpeedKmh   *float64
	Battery    *int // 0-100
	CapturedAt time.Time
	RecordedAt time.Time
}

// RoutePoint is a position attached to one delivery while it was IN_TRANSIT.
// Append-only; never deleted retroactively if the status later changes.
type RoutePoint struct {
	ID         int64
	DeliveryID string // uuid
	CourierID  string // uuid
	Latitude   float64
	Longitude  float64
	Accuracy   *float64
	SpeedKmh   *float64
	Battery    *int
	RecordedAt time.Time
}

// CourierPosition is the dashboard snapshot row: latest sample per courier.
type CourierPosition struct {
	CourierID   string
	CourierName string
	Latitude    float64
	Longitude   float64
	SpeedKmh    *float64
	Battery     *int
	RecordedAt  time.Time
}
