package game

import (
	"encoding/json"
	"log/slog"

	"golang.org/x/time/rate"
)

// Client is one realtime connection. The id doubles as the player id once the
// client joins; joined and sessionID are owned by the hub goroutine and must
// not be touched from the pumps.
type Client struct {
	id       string
	socket   NetworkSession
	limiter  *rate.Limiter
	outbox   chan []byte
	pingChan chan struct{}
	hub      *Hub

	joined    bool
	sessionID string
}

func newClient(id string, socket NetworkSession, hub *Hub) *Client {
	return &Client{
		id:       id,
		socket:   socket,
		limiter:  rate.NewLimiter(20, 40),
		outbox:   make(chan []byte, 256),
		pingChan: make(chan struct{}, 1),
		hub:      hub,
	}
}

// Send queues an outbound frame without blocking the hub; a client that can't
// keep up loses messages rather than stalling everyone else.
func (c *Client) Send(data []byte) error {
	select {
	case c.outbox <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// ReadPump forwards inbound envelopes to the hub until the socket errors,
// then requests its own removal. Envelopes that don't parse are dropped; a
// malformed client must never reach the world state.
func (c *Client) ReadPump() {
	for {
		data, err := c.socket.Read()
		if err != nil {
			break
		}

		if !c.limiter.Allow() {
			slog.Debug("rate limited client event", "client", c.id)
			continue
		}

		var env ClientEnvelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			continue
		}

		c.hub.Forward(clientEvent{from: c, env: env})
	}

	c.hub.RequestRemove(c)
}

func (c *Client) WritePump() {
loop:
	for {
		select {
		case data, ok := <-c.outbox:
			if !ok {
				break loop
			}
			if err := c.socket.Write(data); err != nil {
				break loop
			}
		case _, ok := <-c.pingChan:
			if !ok {
				break loop
			}
			if err := c.socket.Ping(); err != nil {
				break loop
			}
		}
	}
	c.socket.Close("")
}
