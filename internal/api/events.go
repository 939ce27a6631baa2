// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ManuGH/loopcast/internal/api/middleware"
	"github.com/ManuGH/loopcast/internal/log"
)

const (
	msgTypeStatus = "status"

	wsSendBuffer     = 16
	wsBroadcastQueue = 64
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = 30 * time.Second
	wsReadLimit      = 512
)

type wsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type wsClient struct {
	hub  *eventHub
	conn *websocket.Conn
	send chan []byte
}

// eventHub fans status messages out to websocket clients. All client
// bookkeeping happens on the run goroutine.
type eventHub struct {
	clients    map[*wsClient]struct{}
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}

	// snapshot is sent to every client as it registers
	snapshot func() any
	logger   zerolog.Logger
}

func newEventHub(logger zerolog.Logger, snapshot func() any) *eventHub {
	return &eventHub{
		clients:    make(map[*wsClient]struct{}),
		broadcast:  make(chan []byte, wsBroadcastQueue),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
		snapshot:   snapshot,
		logger:     logger,
	}
}

func (h *eventHub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				_ = client.conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(2*time.Second),
				)
				close(client.send)
				delete(h.clients, client)
			}
			h.logger.Debug().Str(log.FieldEvent, "ws.hub_stopped").Msg("event hub stopped")
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			if h.snapshot != nil {
				if msg, err := encodeMessage(msgTypeStatus, h.snapshot()); err == nil {
					client.send <- msg
				}
			}
			h.logger.Debug().Int("clients", len(h.clients)).Msg("ws client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug().Int("clients", len(h.clients)).Msg("ws client disconnected")
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// slow consumer
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// publish queues a message for every client without blocking. It is called
// from state observers with the state lock held.
func (h *eventHub) publish(msgType string, data any) {
	msg, err := encodeMessage(msgType, data)
	if err != nil {
		h.logger.Error().Err(err).Msg("ws marshal failed")
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn().Str(log.FieldEvent, "ws.dropped").Msg("event queue full, message dropped")
	}
}

func encodeMessage(msgType string, data any) ([]byte, error) {
	return json.Marshal(wsMessage{Type: msgType, Data: data})
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS middleware decides which browser origins reach the API
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, middleware.UpgradeHeader(w))
	if err != nil {
		// Upgrade already wrote the HTTP error
		logger := log.WithContext(r.Context(), s.logger)
		logger.Debug().Err(err).Msg("ws upgrade failed")
		return
	}
	client := &wsClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
	}

	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		_ = conn.Close()
		return
	case <-time.After(wsWriteWait):
		_ = conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and detects disconnects.
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(wsReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
