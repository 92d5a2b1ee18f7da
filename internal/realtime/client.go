package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

var errClientGone = errors.New("client gone")

// Client is one live websocket. Pushes go through a buffered channel drained
// by writePump, so registry operations never block on a slow socket.
type Client struct {
	id     string
	userID string // empty for an anonymous connection
	conn   *websocket.Conn
	send   chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, id, userID string, bufSize int) *Client {
	return &Client{
		id:     id,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, bufSize),
	}
}

func (c *Client) ID() string     { return c.id }
func (c *Client) UserID() string { return c.userID }

// Push queues a frame without blocking. A full buffer or a closed client
// returns an error the caller is free to ignore; delivery is best effort and
// close detection belongs to the transport's read loop.
func (c *Client) Push(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientGone
	}
	select {
	case c.send <- b:
		return nil
	default:
		return errClientGone
	}
}

func (c *Client) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) writePump(pingInterval, writeDeadline time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case b, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}
