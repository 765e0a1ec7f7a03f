package http

import (
	"encoding/json"
	"net/http"

	"triviacast-service/internal/app"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler streams leaderboard snapshots to websocket clients.
type WSHandler struct {
	service  *app.LeaderboardService
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewWSHandler(service *app.LeaderboardService, allowedOrigins []string, log *zap.Logger) *WSHandler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || origins[origin]
			},
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type refreshPayload struct {
	Limit int `json:"limit"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and pushes a "leaderboard" message for every
// snapshot. Clients may send {"type":"refresh"} to get the current board.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.Subscribe(r.Context())
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer; gorilla connections allow one concurrent writer
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var out outboundMessage[any]
		switch inbound.Type {
		case "refresh":
			var payload refreshPayload
			if len(inbound.Payload) > 0 {
				_ = json.Unmarshal(inbound.Payload, &payload)
			}
			lb, err := h.service.Get(r.Context(), payload.Limit)
			if err != nil {
				out = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			} else {
				out = outboundMessage[any]{Type: "leaderboard", Payload: lb}
			}
		case "ping":
			out = outboundMessage[any]{Type: "pong", Payload: struct{}{}}
		default:
			out = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
		select {
		case send <- out:
		case <-writerDone:
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
