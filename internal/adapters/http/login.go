package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/Chat/internal/auth"
)

type LoginHandler struct {
	Auth *auth.Authenticator
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *LoginHandler) Token(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	token, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrBadCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}
