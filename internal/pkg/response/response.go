package response

import "github.com/gin-gonic/gin"

// ErrorBody is the structured error envelope every failure returns.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func Error(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{Success: false, Error: kind, Message: message})
}
