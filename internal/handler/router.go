package handler

import (
	"otp_auth/internal/middleware"
	"otp_auth/internal/service"
	"otp_auth/internal/utils"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the API engine with every route mounted under /api/v1.
func NewRouter(authService service.AuthService, userService service.UserService, jwtUtil *utils.JWTUtil) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.RequestID(), middleware.CORS())

	jwtAuthMW := middleware.JWTAuthMiddleware(jwtUtil)

	apiGroup := router.Group("/api/v1")
	NewAuthHandler(authService).RegisterAuthRoutes(apiGroup)
	NewUserHandler(userService).RegisterUserRoutes(apiGroup, jwtAuthMW)

	return router
}
