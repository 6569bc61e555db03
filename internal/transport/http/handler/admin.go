package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/msu-life/auth-service/internal/repository"
)

type AdminHandler struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewAdminHandler(users repository.UserRepository, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{users: users, logger: logger.With("component", "admin_handler")}
}

type adminUserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Username  *string   `json:"username"`
	IsActive  bool      `json:"isActive"`
	IsBanned  bool      `json:"isBanned"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

// GET /admin/users, behind RequireAuth + RequireAdmin.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "list users", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	out := make([]adminUserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, adminUserResponse{
			ID:        u.ID,
			Email:     u.Email,
			Role:      string(u.Role),
			Username:  u.Username,
			IsActive:  u.IsActive,
			IsBanned:  u.IsBanned,
			IsAdmin:   u.IsAdmin,
			CreatedAt: u.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "users": out})
}
