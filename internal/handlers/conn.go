// internal/handlers/conn.go
package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// outBufferSize bounds the per-connection send queue. A client that cannot
// drain this many events is dropped-to rather than blocked-on.
const outBufferSize = 32

// wsConn adapts a websocket to the engine's Sender interface. Sends enqueue
// into a buffered channel drained by the write pump; a full buffer drops the
// event with a warning instead of stalling the game loop.
type wsConn struct {
	userID int64
	out    chan interface{}
	cancel context.CancelFunc
	log    *logrus.Logger
}

func newWSConn(userID int64, cancel context.CancelFunc, log *logrus.Logger) *wsConn {
	return &wsConn{
		userID: userID,
		out:    make(chan interface{}, outBufferSize),
		cancel: cancel,
		log:    log,
	}
}

func (c *wsConn) Send(v interface{}) {
	select {
	case c.out <- v:
	default:
		c.log.WithField("user", c.userID).Warn("outbound buffer full, dropping event")
	}
}

// writePump drains the out channel onto the socket and keeps the connection
// alive with periodic pings. Exits on context cancellation or write failure.
func (c *wsConn) writePump(ctx context.Context, ws *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.out:
			data, err := json.Marshal(msg)
			if err != nil {
				c.log.WithError(err).WithField("user", c.userID).Warn("failed to marshal outgoing event")
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = ws.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				c.log.WithError(err).WithField("user", c.userID).Debug("write failed, stopping write pump")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := ws.Ping(pingCtx)
			cancel()
			if err != nil {
				c.log.WithError(err).WithField("user", c.userID).Debug("ping failed, stopping write pump")
				return
			}
		}
	}
}
