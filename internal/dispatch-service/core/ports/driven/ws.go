package driven

import websocketdto "courier-dispatch/internal/dispatch-service/core/domain/websocket_dto"

// IFanout is the live broadcast channel towards dashboard viewers.
// Fire-and-forget: no acks, no replay for late subscribers.
type IFanout interface {
	Broadcast(event websocketdto.Event)
}
