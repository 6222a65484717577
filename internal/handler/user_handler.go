package handler

import (
	"net/http"
	"strconv"

	"otp_auth/internal/middleware"
	"otp_auth/internal/model"
	"otp_auth/internal/service"

	"github.com/gin-gonic/gin"
)

// UserHandler serves canonical user records.
type UserHandler struct {
	service service.UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(s service.UserService) *UserHandler {
	return &UserHandler{service: s}
}

func (h *UserHandler) GetByEmail(c *gin.Context) {
	h.lookup(c, c.Query("email"))
}

func (h *UserHandler) GetByPhone(c *gin.Context) {
	h.lookup(c, c.Query("phone"))
}

func (h *UserHandler) lookup(c *gin.Context, identifier string) {
	if identifier == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email or phone query parameter is required"})
		return
	}
	user, err := h.service.GetByIdentifier(c.Request.Context(), identifier)
	if err != nil {
		respondError(c, "lookup user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}

func (h *UserHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	user, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, "get user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}

func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := middleware.AuthUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	user, err := h.service.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "get current user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	userID, ok := middleware.AuthUserID(c)
	if !ok || userID != id {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only update your own profile"})
		return
	}

	var req model.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return 0, false
	}
	return id, true
}

// RegisterUserRoutes registers user lookup and profile routes
func (h *UserHandler) RegisterUserRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	userGroup := rg.Group("/users")
	{
		userGroup.GET("/by-email", h.GetByEmail)
		userGroup.GET("/by-phone", h.GetByPhone)
		userGroup.GET("/me", authMW, h.Me)
		userGroup.GET("/:id", h.GetByID)
		userGroup.PATCH("/:id", authMW, h.UpdateProfile)
	}
}
