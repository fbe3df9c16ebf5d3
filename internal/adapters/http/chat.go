package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/domain"
)

type ChatHandler struct {
	Chatrooms *app.Chatrooms
}

type createRoomRequest struct {
	Name    string   `json:"name" binding:"required"`
	Members []string `json:"members"`
}

func (h *ChatHandler) List(c *gin.Context) {
	rooms, err := h.Chatrooms.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

func (h *ChatHandler) ListMine(c *gin.Context) {
	rooms, err := h.Chatrooms.ListMine(c.Request.Context(), MustUser(c))
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no chatrooms found for the current user"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chatrooms": rooms})
}

func (h *ChatHandler) Create(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	id, err := h.Chatrooms.Create(c.Request.Context(), MustUser(c), req.Name, req.Members)
	if errors.Is(err, domain.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": "chatroom already exists"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":     req.Name + " successfully created",
		"chatroom_id": id,
	})
}

func (h *ChatHandler) Join(c *gin.Context) {
	members, err := h.Chatrooms.Join(c.Request.Context(), MustUser(c), domain.RoomID(c.Param("room_id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "member added successfully", "members": members})
}

func (h *ChatHandler) JoinPlatoon(c *gin.Context) {
	room, err := h.Chatrooms.JoinPlatoon(c.Request.Context(), MustUser(c), c.Query("state_code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "joined platoon chat successfully",
		"chatroom_id": room.ID,
		"members":     room.Members,
	})
}

func (h *ChatHandler) Online(c *gin.Context) {
	online, err := h.Chatrooms.Online(c.Request.Context(), MustUser(c), domain.RoomID(c.Param("room_id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"online": online})
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, msg = http.StatusNotFound, "chatroom not found"
	case errors.Is(err, domain.ErrForbidden):
		status, msg = http.StatusForbidden, "not a member of this chatroom"
	case errors.Is(err, domain.ErrConflict):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, app.ErrInvalidStateCode),
		errors.Is(err, app.ErrStateCodeConflict),
		errors.Is(err, app.ErrPlatoonRange),
		errors.Is(err, app.ErrAlreadyMember),
		errors.Is(err, domain.ErrRoomNameEmpty),
		errors.Is(err, domain.ErrRoomNameTooLong),
		errors.Is(err, domain.ErrUsernameEmpty),
		errors.Is(err, domain.ErrUsernameTooLong):
		status, msg = http.StatusBadRequest, err.Error()
	default:
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": msg})
}
