package httptransport

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/msu-life/auth-service/internal/transport/http/handler"
	"github.com/msu-life/auth-service/internal/transport/http/middleware"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(logger *slog.Logger, authHandler *handler.AuthHandler, adminHandler *handler.AdminHandler, sessions *middleware.Sessions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	auth := r.Group("/auth")
	auth.POST("/request-otp", authHandler.RequestCode)
	auth.POST("/verify-otp", authHandler.VerifyCode)
	auth.POST("/logout", authHandler.Logout)

	me := auth.Group("", sessions.RequireAuth())
	me.GET("/me", authHandler.Me)
	me.PATCH("/me", authHandler.UpdateMe)

	admin := r.Group("/admin", sessions.RequireAuth(), sessions.RequireAdmin())
	admin.GET("/users", adminHandler.ListUsers)

	return r
}
