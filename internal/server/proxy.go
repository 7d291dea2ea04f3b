package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ForwardAI relays an arbitrary request to the inference service under the
// configured base URL, preserving method, query, headers and body. Responses
// come back with the upstream's own status; non-JSON bodies are wrapped in a
// detail envelope.
func (s *Server) ForwardAI(c *gin.Context) {
	path := c.Param("path")

	var body []byte
	if c.Request.Body != nil {
		var err error
		body, err = io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Unreadable request body"})
			return
		}
	}

	resp, err := s.inference.Forward(c.Request.Context(), c.Request.Method, path, c.Request.Header, body, c.Request.URL.Query())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if raw, ok := resp.JSON(); ok {
		c.Data(resp.StatusCode, "application/json", raw)
		return
	}
	c.JSON(resp.StatusCode, gin.H{"detail": string(resp.Body)})
}
