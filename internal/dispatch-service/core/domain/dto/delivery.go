package dto

import "time"

type CreateDeliveryRequest struct {
	CustomerName  *string  `json:"customer_name"`
	CustomerPhone *string  `json:"customer_phone"`
	Address       *string  `json:"address"`
	DestLat       *float64 `json:"dest_lat"`
	DestLng       *float64 `json:"dest_lng"`
	Priority      *int     `json:"priority"`
	ScheduledDate *string  `json:"scheduled_date"` // YYYY-MM-DD
	CourierID     *string  `json:"courier_id"`
}

type AssignRequest struct {
	CourierID *string `json:"courier_id"`
}

type CompleteRequest struct {
	PhotoURL     *string  `json:"photo_url"`
	SignatureURL *string  `json:"signature_url"`
	DeliveryLat  *float64 `json:"delivery_lat"`
	DeliveryLng  *float64 `json:"delivery_lng"`
	Notes        *string  `json:"notes"`
}

type FailRequest struct {
	Reason *string `json:"reason"`
}

type RescheduleRequest struct {
	ScheduledDate *string `json:"scheduled_date"` // YYYY-MM-DD
	Reason        *string `json:"reason"`
}

type CancelRequest struct {
	Reason *string `json:"reason"`
}

type DeliveryResponse struct {
	ID               string     `json:"id"`
	TrackingCode     string     `json:"tracking_code"`
	TrackingToken    string     `json:"tracking_token,omitempty"`
	CustomerName     string     `json:"customer_name"`
	CustomerPhone    string     `json:"customer_phone"`
	Address          string     `json:"address"`
	DestLat          *float64   `json:"dest_lat,omitempty"`
	DestLng          *float64   `json:"dest_lng,omitempty"`
	CourierID        *string    `json:"courier_id,omitempty"`
	Status           string     `json:"status"`
	Priority         int        `json:"priority"`
	ScheduledDate    string     `json:"scheduled_date"`
	PhotoURL         *string    `json:"photo_url,omitempty"`
	SignatureURL     *string    `json:"signature_url,omitempty"`
	DeliveryNotes    *string    `json:"delivery_notes,omitempty"`
	DeliveredAt      *time.Time `json:"delivered_at,omitempty"`
	RescheduledCount int        `json:"rescheduled_count"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	CancelReason     *string    `json:"cancel_reason,omitempty"`
	LocalRef         *string    `json:"localId,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type CourierPositionResponse struct {
	CourierID   string    `json:"courier_id"`
	CourierName string    `json:"courier_name"`
	Latitude    float64   `json:"lat"`
	Longitude   float64   `json:"lng"`
	SpeedKmh    *float64  `json:"speed_kmh,omitempty"`
	Battery     *int      `json:"battery,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
}

type CourierActiveResponse struct {
	Active bool `json:"active"`
}
