package signal

import (
	"errors"
	"sync"
	"time"

	"sketchroom/internal/core/domain"
	"sketchroom/internal/core/protocol"

	"github.com/gorilla/websocket"
)

var errConnectionClosed = errors.New("connection closed")

// connection adapts one WebSocket to ports.Connection. Sends are queued on a
// bounded channel and written by a single writer goroutine.
type connection struct {
	id   domain.ParticipantID
	ws   *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(id domain.ParticipantID, ws *websocket.Conn, buffer int) *connection {
	return &connection{
		id:   id,
		ws:   ws,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (c *connection) ID() domain.ParticipantID { return c.id }

// Send never blocks; a full buffer drops the message.
func (c *connection) Send(env protocol.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return errConnectionClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		return domain.ErrSendBufferFull
	}
}

// Close asks the writer to flush and close the socket.
func (c *connection) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *connection) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// writePump owns all writes to the socket.
func (c *connection) writePump(pingInterval, writeTimeout time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			if err := c.write(websocket.TextMessage, data, writeTimeout); err != nil {
				_ = c.Close()
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil, writeTimeout); err != nil {
				_ = c.Close()
				return
			}

		case <-c.done:
			c.flush(writeTimeout)
			_ = c.write(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), writeTimeout)
			return
		}
	}
}

func (c *connection) flush(writeTimeout time.Duration) {
	for {
		select {
		case data := <-c.send:
			if err := c.write(websocket.TextMessage, data, writeTimeout); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *connection) write(messageType int, data []byte, writeTimeout time.Duration) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}
