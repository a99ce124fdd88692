package ws

import (
	"time"

	websocketdto "courier-dispatch/internal/dispatch-service/core/domain/websocket_dto"

	"github.com/gorilla/websocket"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	writeWait    = 10 * time.Second
)

// Client lives for as long as its websocket connection does. The request
// context is deliberately not captured: net/http cancels it when the handler
// returns, and the pumps outlive the handler. The read pump notices the peer
// going away and RemoveClient closes the connection on shutdown.
type Client struct {
	conn   *websocket.Conn
	dis    *Dispatcher
	egress chan websocketdto.Event
	userId string
}

func NewClient(conn *websocket.Conn, dis *Dispatcher, userId string) *Client {
	return &Client{
		conn:   conn,
		dis:    dis,
		egress: make(chan websocketdto.Event, 16),
		userId: userId,
	}
}

// ReadMessage drains the connection. Dashboard clients are listen-only, so
// inbound frames are discarded; the loop exists to service pongs and to
// notice the peer going away.
func (c *Client) ReadMessage() {
	defer c.dis.RemoveClient(c)

	c.conn.SetReadLimit(1024)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.dis.log.Action("ws_read").Warn("unexpected close", "user_id", c.userId)
			}
			return
		}
	}
}

func (c *Client) WriteMessage() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.dis.RemoveClient(c)
	}()

	for {
		select {
		case event, ok := <-c.egress:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
