package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches a connection to the hub as a watcher of sessionID and
// blocks until the peer goes away.
func ServeWs(hub *Hub, c *websocket.Conn, sessionID string, initial []byte) {
	client := &Client{Hub: hub, Conn: c, SessionID: sessionID, Send: make(chan []byte, 256)}
	if initial != nil {
		client.Send <- initial
	}
	if !hub.join(client) {
		c.Close()
		return
	}

	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)
}
