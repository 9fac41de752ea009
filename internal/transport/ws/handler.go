package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"trivia/internal/app"
)

// Handler handles WebSocket connections
type Handler struct {
	hub      *app.GameHub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *app.GameHub, logger *slog.Logger) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// ServeHTTP attaches a screen to the table named by the table query parameter
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("table")))
	if code == "" {
		reject(w, http.StatusBadRequest, ErrCodeInvalidMessage, "table is required")
		return
	}

	engine, err := h.hub.GetTable(code)
	if err != nil {
		reject(w, http.StatusNotFound, ErrCodeTableNotFound, "Table not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, engine, uuid.NewString(), h.logger)
	engine.RegisterClient(client.ID(), client)

	h.logger.Info("websocket connected",
		"tableCode", code,
		"clientID", client.ID(),
		"clients", engine.ClientCount(),
	)

	client.sendConnected()
	client.Run()
}

// reject answers a request that cannot be upgraded with an error message
func reject(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(NewServerMessage(MsgError, errorPayload(code, message)))
}
