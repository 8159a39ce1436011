package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type AuthService interface {
	Connect(ctx context.Context, address, message, signature string) (string, error)
}

type authHandler struct {
	authService AuthService
}

func NewAuthHandler(service AuthService) *authHandler {
	return &authHandler{authService: service}
}

// ConnectHandler implements POST /auth/connect for the wallet login flow.
func (ah *authHandler) ConnectHandler(ctx *gin.Context) {
	var req struct {
		Address   string `json:"address"`
		Signature string `json:"signature"`
		Message   string `json:"message"`
	}

	if err := ctx.ShouldBindJSON(&req); err != nil || req.Address == "" || req.Signature == "" || req.Message == "" {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	token, err := ah.authService.Connect(ctx.Request.Context(), req.Address, req.Message, req.Signature)

	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSignature):
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		case errors.Is(err, context.Canceled):
			ctx.AbortWithStatus(499) // http code for "Client Closed Request"
		default:
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success":      true,
		"address":      strings.ToLower(req.Address),
		"sessionToken": token,
	})
}
