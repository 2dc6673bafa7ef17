package remote

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
)

// client is one WebSocket connection. Writes happen on writeLoop only.
type client struct {
	conn *websocket.Conn
	send chan []byte

	once sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, send: make(chan []byte, sendBuffer)}
}

// queue hands data to the writer without blocking. Callers hold the
// server's client lock, so send is never closed underneath them.
func (c *client) queue(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}
