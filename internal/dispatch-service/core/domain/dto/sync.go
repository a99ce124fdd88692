package dto

// Wire format of the offline reconciliation batch. Field names follow the
// mobile client's queue entries, hence the camelCase keys.

type SyncRequest struct {
	Deliveries []SyncDeliveryItem `json:"deliveries"`
	Locations  []SyncLocationItem `json:"locations,omitempty"`
}

type SyncDeliveryItem struct {
	LocalID       string   `json:"localId"`
	ServerID      *string  `json:"serverId,omitempty"`
	Status        string   `json:"status"`
	PhotoURL      *string  `json:"photoUrl,omitempty"`
	SignatureURL  *string  `json:"signatureUrl,omitempty"`
	DeliveryLat   *float64 `json:"deliveryLat,omitempty"`
	DeliveryLng   *float64 `json:"deliveryLng,omitempty"`
	DeliveredAt   *string  `json:"deliveredAt,omitempty"` // RFC3339
	DeliveryNotes *string  `json:"deliveryNotes,omitempty"`
}

type SyncLocationItem struct {
	Lat        *float64 `json:"lat"`
	Lng        *float64 `json:"lng"`
	Accuracy   *float64 `json:"accuracy,omitempty"`
	SpeedKmh   *float64 `json:"speed,omitempty"`
	Battery    *int     `json:"battery,omitempty"`
	RecordedAt *string  `json:"recordedAt,omitempty"` // RFC3339
}

type SyncResponse struct {
	DeliveriesUpdated int                `json:"deliveriesUpdated"`
	LocationsAdded    int                `json:"locationsAdded"`
	Deliveries        []DeliveryResponse `json:"deliveries"`
}
