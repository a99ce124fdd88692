package model

import "time"

const (
	StatusPending   = "PENDING"
	StatusAssigned  = "ASSIGNED"
	StatusInTransit = "IN_TRANSIT"
	StatusDelivered = "DELIVERED"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

type Operation string

const (
	OpAssign     Operation = "assign"
	OpStart      Operation = "start"
	OpComplete   Operation = "complete"
	OpFail       Operation = "fail"
	OpReschedule Operation = "reschedule"
	OpCancel     Operation = "cancel"
)

// Transitions is the single authority on delivery lifecycle. Every guarded
// operation consults it; a missing entry means the operation is rejected in
// that state. DELIVERED and CANCELLED have no outgoing edges.
var Transitions = map[string]map[Operation]string{
	StatusPending: {
		OpAssign:     StatusAssigned,
		OpReschedule: StatusPending,
		OpCancel:     StatusCancelled,
	},
	StatusAssigned: {
		OpAssign:     StatusAssigned,
		OpStart:      StatusInTransit,
		OpComplete:   StatusDelivered,
		OpReschedule: StatusPending,
		OpCancel:     StatusCancelled,
	},
	StatusInTransit: {
		OpAssign:     StatusAssigned,
		OpComplete:   StatusDelivered,
		OpFail:       StatusFailed,
		OpReschedule: StatusPending,
		OpCancel:     StatusCancelled,
	},
	StatusFailed: {
		OpAssign:     StatusAssigned,
		OpComplete:   StatusDelivered,
		OpReschedule: StatusPending,
		OpCancel:     StatusCancelled,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

// NextStatus reports the resulting status of applying op in the current
// status, and whether the transition is allowed at all.
func NextStatus(current string, op Operation) (string, bool) {
	ops, ok := Transitions[current]
	if !ok {
		return "", false
	}
	next, ok := ops[op]
	return next, ok
}

// StatusesAllowing returns every status from which op is permitted. Used to
// build the conditional UPDATE guards in the repository layer.
func StatusesAllowing(op Operation) []string {
	var out []string
	for status, ops := range Transitions {
		if _, ok := ops[op]; ok {
			out = append(out, status)
		}
	}
	return out
}

func IsTerminal(status string) bool {
	return status == StatusDelivered || status == StatusCancelled
}

func IsValidStatus(status string) bool {
	_, ok := Transitions[status]
	return ok
}

type Delivery struct {
	ID            string // uuid
	TrackingCode  string // human-shareable, DLV_YYYYMMDD_NNNN
	TrackingToken string // anonymous tracking capability, independent of the code
	CustomerName  string
	CustomerPhone string
	Address       string
	DestLat       *float64
	DestLng       *float64
	CourierID     *string // uuid, nil while PENDING
	Status        string
	Priority      int
	ScheduledDate time.Time

	// proof of delivery
	PhotoURL      *string
	SignatureURL  *string
	DeliveryLat   *float64
	DeliveryLng   *float64
	DeliveryNotes *string
	DeliveredAt   *time.Time

	RescheduledCount int
	RescheduleReason *string
	CancelledAt      *time.Time
	CancelReason     *string

	// offline-client correlation
	LocalRef     *string
	LastSyncedAt *time.Time

	CreatedBy     string // uuid of the back-office actor
	CreatedByRole string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OwnedBy reports whether the delivery is currently assigned to the courier.
func (d Delivery) OwnedBy(courierID string) bool {
	return d.CourierID != nil && *d.CourierID == courierID
}
