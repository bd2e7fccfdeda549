package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/use-agent/mailscout/models"
)

// apiKeyContextKey is where Auth stores the caller's key for later middleware.
const apiKeyContextKey = "api_key"

// abort stops the chain with a failed LookupResponse body.
func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, models.LookupResponse{
		Success: false,
		Emails:  []string{},
		Error:   &models.ErrorDetail{Code: code, Message: message},
	})
}
