package game

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type GameHandler struct {
	hub      *Hub
	verifier TokenVerifier
	upgrader websocket.Upgrader
}

func NewGameHandler(hub *Hub, verifier TokenVerifier) *GameHandler {
	return &GameHandler{
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// origins are already filtered by the allowlist middleware
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// WebsocketHandler upgrades the connection and hands it to the hub. The
// connection id becomes the player id on join.
func (h *GameHandler) WebsocketHandler(ctx *gin.Context) {
	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "ip", ctx.ClientIP(), "err", err)
		return
	}

	session := NewWebsocketSession(conn)
	client := newClient(uuid.NewString(), &session, h.hub)

	h.hub.Register(client)
	go client.WritePump()
	go client.ReadPump()
}

// JoinGameHandler reserves a session slot for an authenticated wallet before
// the realtime connection is opened.
func (h *GameHandler) JoinGameHandler(ctx *gin.Context) {
	var req struct {
		Address      string `json:"address"`
		SessionToken string `json:"sessionToken"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil || req.Address == "" || req.SessionToken == "" {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	verifiedAddress, err := h.verifier.Verify(req.SessionToken)
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid session token"})
		return
	}
	// the token is bound to one wallet; it must not admit another
	if !strings.EqualFold(verifiedAddress, req.Address) {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid session token"})
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), time.Second*2)
	defer cancel()

	res, err := h.hub.JoinSession(reqCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			ctx.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{"error": "Failed to join game"})
			return
		}
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to join game"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success":     true,
		"sessionId":   res.SessionID,
		"playerCount": res.PlayerCount,
		"maxPlayers":  res.MaxPlayers,
		"playerData": gin.H{
			// submarine tier lookups belong to the contract authority; the
			// relay hands out the baseline and lets the client upgrade
			"address":       req.Address,
			"submarineType": 1,
			"joinedAt":      time.Now().UnixMilli(),
		},
	})
}
