/*
Package chat contains the realtime messaging core.

This file defines the Client struct, representing an authenticated WebSocket
connection. It manages the connection's lifecycle and its message
communication loops (ReadPump and WritePump).
*/
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"wirechat/internal/pkg/errs"
	"wirechat/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 8192

	// maximum allowed size (in bytes) for text message content.
	MaxContentBytes = 5000

	// sendQueueSize is the per-connection outbound buffer.
	sendQueueSize = 256
)

// Client represents an active WebSocket connection bound to a verified user identity.
type Client struct {
	// service routes this connection's inbound events.
	service *Service

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// userID is the identity bound to the connection at handshake time.
	userID string

	// a buffered channel used to queue messages waiting to be sent to the client.
	send chan []byte

	// closeOnce guards against double-closing the send channel.
	closeOnce sync.Once

	// structured logger with client context.
	logger zerolog.Logger
}

// NewClient constructs a Client for the given connection and verified user id.
func NewClient(service *Service, wsConn *websocket.Conn, userID string) *Client {
	clientLogger := logx.Logger().With().
		Str("client_id", userID).
		Logger()

	return &Client{
		service: service,
		conn:    wsConn,
		userID:  userID,
		send:    make(chan []byte, sendQueueSize),
		logger:  clientLogger,
	}
}

// UserID returns the identity bound to the connection.
func (c *Client) UserID() string {
	return c.userID
}

// ReadPump handles reading messages from the WebSocket connection.
// It handles heartbeats (Pong), event dispatch, and performs cleanup upon connection closure.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.processInboundMessage(messageBytes)
	}
}

// cleanupOnDisconnect handles the necessary cleanup steps when the client's ReadPump terminates.
// Store writes already issued by in-flight handlers are allowed to complete.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	c.service.Disconnect(context.Background(), c)

	c.closeSend()

	if err := c.conn.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Client connection close error")
	}
}

// processInboundMessage decodes the envelope and hands the event to the dispatch table.
func (c *Client) processInboundMessage(messageBytes []byte) {
	var env Envelope

	if err := json.Unmarshal(messageBytes, &env); err != nil {
		c.logger.Warn().Err(err).
			Bytes("message_bytes", messageBytes).
			Msg("Client sent invalid JSON")
		return
	}

	c.service.Dispatch(context.Background(), c, env)
}

// WritePump handles writing messages from the Client.send channel to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage handles messages pulled from the send channel, writing them to the WebSocket.
// Returns true if the WritePump loop should continue, false if it should terminate.
func (c *Client) writeQueuedMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Error().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// queue enqueues pre-marshaled bytes for delivery, dropping the frame when
// the client's buffer is full.
func (c *Client) queue(data []byte) {
	select {
	case c.send <- data:
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping message")
	}
}

// Emit marshals and queues a single event for this connection only.
func (c *Client) Emit(event string, payload any) error {
	data, err := json.Marshal(OutboundEnvelope{Event: event, Payload: payload})
	if err != nil {
		c.logger.Error().Err(err).Str("event", event).Msg("Error marshaling event for client")
		return err
	}

	c.queue(data)
	return nil
}

// SendError reports a failed operation back to the acting client only,
// naming the event that failed.
func (c *Client) SendError(event string, err error) {
	message := "An error occurred"

	var customErr *errs.CustomError
	if errors.As(err, &customErr) {
		message = customErr.Message
	}

	if emitErr := c.Emit(EventError, ErrorPayload{Message: message, Event: event}); emitErr != nil {
		c.logger.Error().Err(emitErr).Msg("Failed to queue error event")
	}
}

// closeSend closes the send channel exactly once, terminating WritePump.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}
