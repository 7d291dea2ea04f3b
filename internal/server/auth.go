package server

import (
	"net/http"

	"github.com/agrovista/agrigate/internal/auth/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Login returns the identity provider's hosted authorization URL. The client
// redirects the browser there to start the login flow.
func (s *Server) Login(c *gin.Context) {
	state := uuid.NewString()
	c.JSON(http.StatusOK, gin.H{"authorization_url": s.idp.AuthorizationURL(state)})
}

type callbackRequest struct {
	Code string `json:"code"`
}

// Callback exchanges the authorization code returned by the provider for
// tokens, provisions the user, records the session and sets the session
// cookie.
func (s *Server) Callback(c *gin.Context) {
	var req callbackRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Missing authorization code"})
		return
	}

	res, err := s.authsvc.LoginCallback(c.Request.Context(), domain.LoginCallbackRequest{
		Code:      req.Code,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, res.Credential, res.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    res.User,
	})
}

// Logout invalidates the session and clears the cookie. It succeeds even when
// the credential is missing, expired or malformed so a client can always log
// out cleanly.
func (s *Server) Logout(c *gin.Context) {
	resp := gin.H{"message": "Logged out"}

	credential, ok := s.sessions.ReadCredential(c)
	if ok {
		res, err := s.authsvc.Logout(c.Request.Context(), credential)
		if err != nil {
			s.log.Warn("logout cleanup failed", zap.Error(err))
		} else if res.WorkOSLogoutURL != "" {
			resp["workos_logout_url"] = res.WorkOSLogoutURL
		}
	}

	s.sessions.Clear(c)
	c.JSON(http.StatusOK, resp)
}

// Me returns the authenticated user and a summary of the current session.
func (s *Server) Me(c *gin.Context) {
	user := currentUser(c)
	sess := currentSession(c)

	resp := gin.H{"user": user}
	if sess != nil {
		resp["session"] = domain.SessionSummary{
			IPAddress:    sess.IPAddress,
			UserAgent:    sess.UserAgent,
			LastActivity: sess.LastSeenAt,
		}
	}
	c.JSON(http.StatusOK, resp)
}
