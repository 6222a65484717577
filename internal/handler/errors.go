package handler

import (
	"log"

	"otp_auth/internal/apperr"

	"github.com/gin-gonic/gin"
)

// respondError writes err with the status of its kind. Internal causes are
// logged and replaced with a generic message.
func respondError(c *gin.Context, action string, err error) {
	status := apperr.HTTPStatus(err)
	if apperr.KindOf(err) == apperr.Internal {
		log.Printf("ERROR: %s failed: %v", action, err)
	}
	c.JSON(status, gin.H{"error": apperr.MessageOf(err)})
}
