package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListUsers returns every registered user. Admin only.
func (s *Server) ListUsers(c *gin.Context) {
	user := currentUser(c)
	if !user.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"detail": "Admin access required"})
		return
	}

	users, err := s.users.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}
