package peer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// DirectSendFunc delivers a direct message on behalf of a UI client; it is
// backed by the agent's SendDirect.
type DirectSendFunc func(ctx context.Context, targetID, body string) error

// wsCommand is what a UI socket may send upstream: a direct message to one
// peer.
type wsCommand struct {
	TargetID string `json:"target_id"`
	Body     string `json:"body"`
}

// wsResult reports the outcome of a wsCommand back on the same socket.
type wsResult struct {
	OK     bool   `json:"ok"`
	Target string `json:"target_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// UIClient represents one local UI websocket connection. Inbound frames are
// direct-send commands, rate limited per connection; outbound frames are
// inbox notifications fanned out by the hub.
type UIClient struct {
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	addr           string
	closed         bool
	maxMessageSize int64
	rateLimiter    *rateLimiter
	sendDirect     DirectSendFunc
	sendTimeout    time.Duration
}

// NewUIClient creates a client for an upgraded websocket connection. The
// send channel is buffered to absorb notification bursts.
func NewUIClient(conn *websocket.Conn, hub *Hub, addr string, maxMessageSize int64, burst int, refill time.Duration, sendDirect DirectSendFunc, sendTimeout time.Duration) *UIClient {
	if conn != nil {
		conn.SetReadLimit(maxMessageSize)
	}
	if sendTimeout <= 0 {
		sendTimeout = 5 * time.Second
	}

	return &UIClient{
		conn:           conn,
		send:           make(chan []byte, 256),
		hub:            hub,
		addr:           addr,
		maxMessageSize: maxMessageSize,
		rateLimiter:    newRateLimiter(burst, refill),
		sendDirect:     sendDirect,
		sendTimeout:    sendTimeout,
	}
}

// setupReadConnection configures read deadlines and the pong handler.
func (c *UIClient) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", c.addr, err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", c.addr, err)
		}
		return nil
	})
}

// handleReadError logs the error and reports whether the read loop should
// stop.
func (c *UIClient) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		log.Printf("Command from %s exceeded maximum size of %d bytes", c.addr, c.maxMessageSize)
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		log.Printf("UI client %s disconnected: %v", c.addr, err)
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		log.Printf("UI client %s connection closed: %v", c.addr, err)
		return true
	}

	log.Printf("Websocket read error from %s: %v", c.addr, err)
	return true
}

// processCommand parses and executes one direct-send command from the UI,
// reporting the result back on the same socket.
func (c *UIClient) processCommand(raw []byte) {
	var cmd wsCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		log.Printf("Invalid command from %s: %v", c.addr, err)
		c.reply(wsResult{OK: false, Error: "invalid command"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.sendTimeout)
	defer cancel()

	if err := c.sendDirect(ctx, cmd.TargetID, cmd.Body); err != nil {
		log.Printf("Direct send from UI %s to %s failed: %v", c.addr, cmd.TargetID, err)
		c.reply(wsResult{OK: false, Target: cmd.TargetID, Error: err.Error()})
		return
	}
	c.reply(wsResult{OK: true, Target: cmd.TargetID})
}

// reply queues a result frame without blocking the read loop.
func (c *UIClient) reply(result wsResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *UIClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error closing connection in readPump: %v", err)
			}
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				break
			}
		}

		if c.rateLimiter != nil && !c.rateLimiter.allow() {
			log.Printf("Rate limit exceeded for %s; discarding command", c.addr)
			c.reply(wsResult{OK: false, Error: "rate limited"})
			continue
		}

		if c.sendDirect == nil {
			continue
		}
		c.processCommand(raw)
	}
}

func (c *UIClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error closing connection in writePump: %v", err)
			}
		}
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				log.Printf("Error setting write deadline for %s: %v", c.addr, err)
				return
			}
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					if !isExpectedCloseError(err) {
						log.Printf("Error writing close message to %s: %v", c.addr, err)
					}
				}
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("Error writing notification to %s: %v", c.addr, err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				log.Printf("Error setting write deadline for ping to %s: %v", c.addr, err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("Error writing ping message to %s: %v", c.addr, err)
				return
			}
		}
	}
}

// isExpectedCloseError checks if an error is expected during connection
// closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
