package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trivia/internal/app"
	"trivia/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Size of the send channel buffer
	sendBufferSize = 256
)

// Client is one screen attached to a table
type Client struct {
	conn   *websocket.Conn
	engine *app.Engine
	id     string
	send   chan []byte
	done   chan struct{}
	logger *slog.Logger

	// ctx bounds the engine calls started by this client
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, engine *app.Engine, id string, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:   conn,
		engine: engine,
		id:     id,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: logger.With("clientID", id, "table", engine.ID()),
		ctx:    ctx,
		cancel: cancel,
	}
}

// ID returns the connection id
func (c *Client) ID() string {
	return c.id
}

// Send implements app.ClientConnection interface
func (c *Client) Send(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.logger.Warn("send buffer full, message dropped")
		return nil
	}
}

// Close implements app.ClientConnection interface
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.cancel()
	close(c.done)
	return c.conn.Close()
}

// Run starts the client's read and write pumps
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump pumps messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.engine.UnregisterClient(c.id)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming message from the client
func (c *Client) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid message format")
		return
	}

	switch msg.Type {
	case MsgStartGame:
		c.handleStartGame(msg.Payload)
	case MsgSubmitAnswer:
		c.handleSubmitAnswer(msg.Payload)
	case MsgSelectOption:
		c.handleSelectOption(msg.Payload)
	case MsgNextTurn:
		c.async("next_turn", c.engine.AdvanceTurn)
	case MsgDismissError:
		c.engine.DismissError()
	case MsgPing:
		c.sendPong()
	default:
		c.sendError(ErrCodeInvalidMessage, "Unknown message type")
	}
}

// handleStartGame builds the roster from the submitted names and starts the game
func (c *Client) handleStartGame(payload json.RawMessage) {
	var p StartGamePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}

	roster := domain.NewRoster(c.engine.State().Settings.MaxPlayers)
	for _, name := range p.Players {
		if _, err := roster.Add(name); err != nil {
			c.sendError(domain.ErrorCode(err), err.Error())
			return
		}
	}
	players := roster.Players()

	c.async("start_game", func(ctx context.Context) error {
		return c.engine.Start(ctx, players)
	})
}

// handleSubmitAnswer handles a submit_answer message
func (c *Client) handleSubmitAnswer(payload json.RawMessage) {
	var p SubmitAnswerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}

	c.async("submit_answer", func(ctx context.Context) error {
		return c.engine.SubmitDirectAnswer(ctx, p.Answer)
	})
}

// handleSelectOption handles a select_option message
func (c *Client) handleSelectOption(payload json.RawMessage) {
	var p SelectOptionPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.Option == "" {
		c.sendError(ErrCodeInvalidMessage, "Option is required")
		return
	}

	if !c.engine.SelectOption(p.Option) {
		c.logger.Debug("option ignored", "option", p.Option)
	}
}

// async runs an engine call off the read pump. Failed external calls are
// broadcast by the engine; only precondition errors are answered here.
func (c *Client) async(op string, call func(ctx context.Context) error) {
	go func() {
		err := call(c.ctx)
		if err == nil || errors.Is(err, app.ErrEngineClosed) || domain.KindOf(err) != nil {
			return
		}
		c.logger.Debug("action rejected", "op", op, "error", err)
		c.sendError(domain.ErrorCode(err), err.Error())
	}()
}

// sendConnected sends the connected message to the client
func (c *Client) sendConnected() {
	c.Send(NewServerMessage(MsgConnected, &ConnectedPayload{
		ClientID:  c.id,
		TableCode: c.engine.ID(),
		View:      c.engine.View(),
	}))
}

// sendError sends an error message to the client
func (c *Client) sendError(code, message string) {
	c.Send(NewServerMessage(MsgError, errorPayload(code, message)))
}

// sendPong sends a pong message in response to ping
func (c *Client) sendPong() {
	c.Send(NewServerMessage(MsgPong, nil))
}
