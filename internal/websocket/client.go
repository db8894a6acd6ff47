package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client is one merchant dashboard connection, subscribed to a single
// restaurant's events.
type Client struct {
	hub          *Hub
	conn         *ws.Conn
	restaurantID int64
	send         chan []byte
}

func NewClient(hub *Hub, conn *ws.Conn, restaurantID int64) *Client {
	return &Client{
		hub:          hub,
		conn:         conn,
		restaurantID: restaurantID,
		send:         make(chan []byte, sendBufferSize),
	}
}

// Run subscribes the client and forwards hub events until the dashboard
// disconnects or ctx ends.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	// The feed is one-way. CloseRead discards inbound frames and cancels
	// the returned context once the peer closes.
	ctx = c.conn.CloseRead(ctx)
	c.forward(ctx)
}

func (c *Client) forward(ctx context.Context) {
	keepalive := time.NewTicker(pingInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			c.conn.Close(ws.StatusGoingAway, "")
			return
		case msg, ok := <-c.send:
			if !ok {
				// Unregistered by the hub.
				c.conn.Close(ws.StatusNormalClosure, "")
				return
			}
			if err := c.write(ctx, msg); err != nil {
				return
			}
		case <-keepalive.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(wctx, ws.MessageText, msg)
}
