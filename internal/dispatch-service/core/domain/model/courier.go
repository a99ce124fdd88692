package model

const (
	RoleCourier    = "COURIER"
	RoleDispatcher = "DISPATCHER"
	RoleAdmin      = "ADMIN"
)

type Courier struct {
	ID     string // uuid
	Name   string
	Phone  string
	Role   string
	Active bool
}

// CourierIdentity is the slice of a courier the ingest path needs per message.
type CourierIdentity struct {
	Name string
	Role string
}
