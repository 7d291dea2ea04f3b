package server

import (
	"net/http"

	"github.com/agrovista/agrigate/internal/auth/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

// logScope returns the user filter for list endpoints: admins see every row,
// everyone else only their own.
func logScope(user *domain.User) *snowflake.ID {
	if user.IsAdmin {
		return nil
	}
	id := user.ID
	return &id
}

// ListLogs returns classification logs, newest first.
func (s *Server) ListLogs(c *gin.Context) {
	user := currentUser(c)

	rows, err := s.logs.ListLogs(c.Request.Context(), logScope(user))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": rows})
}

type createLogRequest struct {
	Type         string                 `json:"type" binding:"required"`
	InputData    map[string]interface{} `json:"input_data" binding:"required"`
	OutputResult map[string]interface{} `json:"output_result" binding:"required"`
}

// CreateLog records a classification request/response pair for the caller.
func (s *Server) CreateLog(c *gin.Context) {
	var req createLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid log payload"})
		return
	}

	user := currentUser(c)
	entry := &domain.Log{
		UserID:       user.ID,
		Type:         req.Type,
		InputData:    datatypes.JSONMap(req.InputData),
		OutputResult: datatypes.JSONMap(req.OutputResult),
	}
	if err := s.logs.CreateLog(c.Request.Context(), entry); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// History returns prediction runs, newest first.
func (s *Server) History(c *gin.Context) {
	user := currentUser(c)

	rows, err := s.logs.ListPredictionLogs(c.Request.Context(), logScope(user))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": rows})
}
