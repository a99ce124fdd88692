package dto

// Public tracking views. Everything here is served to anonymous callers, so
// the shapes are already privacy-transformed: no street address, no courier
// surname, coordinates only when the delivery status allows them.

type TrackingSnapshot struct {
	TrackingCode     string   `json:"trackingCode"`
	Status           string   `json:"status"`
	Zone             string   `json:"zone"`
	CourierName      *string  `json:"courierName,omitempty"` // first name only
	DestLat          *float64 `json:"destLat,omitempty"`
	DestLng          *float64 `json:"destLng,omitempty"`
	ScheduledDate    string   `json:"scheduledDate"`
	DeliveredAt      *string  `json:"deliveredAt,omitempty"`
	RescheduledCount int      `json:"rescheduledCount"`
}

type TrackingLocation struct {
	Available bool     `json:"available"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
	UpdatedAt *string  `json:"updatedAt,omitempty"`
	Message   string   `json:"message,omitempty"`
}

type TrackingRoutePoint struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	RecordedAt string  `json:"recordedAt"`
}

type TrackingRoute struct {
	Points []TrackingRoutePoint `json:"points"`
}
