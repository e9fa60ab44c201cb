package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/hylla/tavla/internal/adapters/server/common"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Replies queued for one peer before new ones are dropped.
	replyBuffer = 8
)

// Stream message types.
const (
	StreamMessageChange = "change"
	StreamMessagePing   = "ping"
	StreamMessagePong   = "pong"
)

// StreamMessage is the frame format of the `/events` websocket.
type StreamMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// streamClient is one websocket peer following committed change events.
type streamClient struct {
	conn    *websocket.Conn
	replies chan []byte
	logger  *charmLog.Logger
}

// handleEventStream serves GET `/events` as a websocket of change events.
func (h *Handler) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeJSONError(w, http.StatusNotImplemented, APIError{
			Code:    "not_implemented",
			Message: "event stream is not available",
		})
		return
	}
	if _, ok := h.requestContext(w, r); !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the failure response.
		if h.logger != nil {
			h.logger.Warn("event stream upgrade failed", "err", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := &streamClient{conn: conn, replies: make(chan []byte, replyBuffer), logger: h.logger}
	feed := h.events.Subscribe(ctx)
	go client.readPump(cancel)
	client.writePump(ctx, feed)
}

// readPump consumes peer frames until the connection fails, then cancels the stream.
func (c *streamClient) readPump(cancel context.CancelFunc) {
	defer cancel()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) && c.logger != nil {
				c.logger.Debug("event stream read failed", "err", err)
			}
			return
		}
		var msg StreamMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Type != StreamMessagePing {
			continue
		}
		pong, err := json.Marshal(StreamMessage{
			Type: StreamMessagePong,
			Data: map[string]string{"timestamp": time.Now().UTC().Format(time.RFC3339)},
		})
		if err != nil {
			continue
		}
		select {
		case c.replies <- pong:
		default:
		}
	}
}

// writePump forwards change events and replies to the peer until ctx is done or the feed closes.
func (c *streamClient) writePump(ctx context.Context, feed <-chan common.Event) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case event, ok := <-feed:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(StreamMessage{Type: StreamMessageChange, Data: event}); err != nil {
				return
			}
		case reply := <-c.replies:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, reply); err != nil {
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
