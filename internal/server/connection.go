package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/shellgame/internal/game"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	sendBuffer = 256
)

var ErrConnectionClosed = errors.New("connection closed")

// Connection binds one WebSocket client to its own engine. The client only
// ever sees redacted snapshots: the token's container is hidden until the
// round is revealed.
type Connection struct {
	conn        *websocket.Conn
	engine      *game.Engine
	send        chan *Message
	logger      *log.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	closeOnce   sync.Once
	releaseOnce sync.Once
	unsubscribe func()
}

// NewConnection subscribes to engine and queues its current state. Nothing
// is written to the socket until Start.
func NewConnection(conn *websocket.Conn, engine *game.Engine, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Connection{
		conn:   conn,
		engine: engine,
		send:   make(chan *Message, sendBuffer),
		logger: logger.WithPrefix("conn").With("game", engine.ID()),
		ctx:    ctx,
		cancel: cancel,
	}
	c.unsubscribe = engine.Subscribe(c.pushSnapshot)
	c.pushSnapshot(engine.Snapshot())
	return c
}

// Start begins pumping messages.
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Done is closed once the connection has shut down.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close shuts the socket down. It never touches the engine, because it may
// run inside an engine subscriber; the server closes the engine afterwards.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// release detaches from and closes the engine. Call only outside engine
// callbacks.
func (c *Connection) release() {
	c.releaseOnce.Do(func() {
		c.unsubscribe()
		c.engine.Close()
	})
}

// SendMessage queues msg without blocking. A full buffer means the client
// cannot keep up, so the connection is dropped.
func (c *Connection) SendMessage(msg *Message) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

func (c *Connection) pushSnapshot(s game.Snapshot) {
	msg, err := NewMessage(MessageTypeSnapshot, s.Redacted())
	if err != nil {
		c.logger.Error("Failed to encode snapshot", "error", err)
		return
	}
	_ = c.SendMessage(msg) // dropped connections are cleaned up by the server
}

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Debug("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type)

	switch msg.Type {
	case MessageTypeCommand:
		var data CommandData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse command data")
			return
		}
		c.handleCommand(data, msg.RequestID)

	default:
		c.sendError("unknown_message_type", "Unknown message type: "+msg.Type.String())
	}
}

func (c *Connection) handleCommand(data CommandData, requestID string) {
	var applied bool
	switch data.Command {
	case CommandStart:
		applied = c.engine.Start()
	case CommandSelect:
		applied = c.engine.Select(data.Position)
	case CommandAdvance:
		applied = c.engine.Advance()
	case CommandRestart:
		applied = c.engine.Restart()
	default:
		c.sendError("unknown_command", "Unknown command: "+data.Command)
		return
	}

	c.logger.Debug("Command", "command", data.Command, "position", data.Position, "applied", applied)

	ack, err := NewMessage(MessageTypeAck, AckData{Command: data.Command, Applied: applied})
	if err != nil {
		c.logger.Error("Failed to encode ack", "error", err)
		return
	}
	ack.RequestID = requestID
	_ = c.SendMessage(ack)
}

// sendError sends an error message to the client
func (c *Connection) sendError(code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}

	_ = c.SendMessage(errorMsg)
}
