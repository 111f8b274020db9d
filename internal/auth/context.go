package auth

import "github.com/gin-gonic/gin"

const (
	operatorIDKey    = "operatorID"
	operatorEmailKey = "operatorEmail"
	operatorRoleKey  = "operatorRole"
)

// GetOperatorID returns the authenticated operator's ID or empty string.
func GetOperatorID(c *gin.Context) string {
	return c.GetString(operatorIDKey)
}

// GetOperatorEmail returns the authenticated operator's email or empty string.
func GetOperatorEmail(c *gin.Context) string {
	return c.GetString(operatorEmailKey)
}

func GetOperatorRole(c *gin.Context) Role {
	if v, ok := c.Get(operatorRoleKey); ok {
		if r, ok := v.(Role); ok {
			return r
		}
	}
	return ""
}
