package ws

import (
	"net/http"
	"sync"

	websocketdto "courier-dispatch/internal/dispatch-service/core/domain/websocket_dto"
	ports "courier-dispatch/internal/dispatch-service/core/ports/driven"
	"courier-dispatch/internal/dispatch-service/core/services"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/mylogger"

	"github.com/gorilla/websocket"
)

// websocketUpgrader is used to upgrade incoming HTTP requests into a persistent websocket connection
var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ClientList is a map used to help manage a map of clients
type ClientList map[*Client]bool

// Dispatcher is the dashboard fan-out hub. Broadcast never blocks on a
// client: a consumer that cannot keep up is disconnected and must dial back.
type Dispatcher struct {
	clients ClientList
	sync.RWMutex
	auth *services.AuthService
	log  mylogger.Logger
}

var _ ports.IFanout = (*Dispatcher)(nil)

func NewDispatcher(auth *services.AuthService, log mylogger.Logger) *Dispatcher {
	return &Dispatcher{
		clients: make(ClientList),
		auth:    auth,
		log:     log,
	}
}

// WsHandler authenticates the dashboard client via the token query parameter
// (browsers cannot set headers on websocket dials) and upgrades it.
func (d *Dispatcher) WsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := d.log.Action("ws_connect")

		token := r.URL.Query().Get("token")
		if token == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		claims, err := d.auth.ValidateToken(token)
		if err != nil {
			log.Warn("rejected dashboard client", "reason", err.Error())
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		conn, err := websocketUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("cannot upgrade", err)
			return
		}

		client := NewClient(conn, d, claims.UserID)
		d.AddClient(client)
		go client.ReadMessage()
		go client.WriteMessage()

		log.Info("dashboard client connected", "user_id", claims.UserID)
	}
}

// Broadcast fans an event out to every connected dashboard client.
func (d *Dispatcher) Broadcast(event websocketdto.Event) {
	d.RLock()
	defer d.RUnlock()

	for client := range d.clients {
		select {
		case client.egress <- event:
		default:
			// slow consumer, drop it rather than stall the ingest path
			go d.RemoveClient(client)
		}
	}
}

func (d *Dispatcher) AddClient(client *Client) {
	d.Lock()
	defer d.Unlock()

	d.clients[client] = true
	metrics.DashboardClientsConnected.Inc()
}

func (d *Dispatcher) RemoveClient(client *Client) {
	d.Lock()
	defer d.Unlock()

	if _, ok := d.clients[client]; ok {
		if client.conn != nil {
			client.conn.Close()
		}
		delete(d.clients, client)
		metrics.DashboardClientsConnected.Dec()
	}
}
