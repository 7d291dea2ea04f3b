package server

import (
	"github.com/agrovista/agrigate/internal/auth/domain"
	"github.com/gin-gonic/gin"
)

const (
	ctxUserKey    = "auth.user"
	ctxSessionKey = "auth.session"
)

// AuthRequired resolves the request credential into a user and session. When
// the service rotated the credential during a proactive refresh, the new
// value replaces the session cookie before the handler runs.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		credential, ok := s.sessions.ReadCredential(c)
		if !ok {
			AbortWithError(c, domain.ErrUnauthenticated)
			return
		}

		res, err := s.authsvc.Authenticate(c.Request.Context(), credential)
		if err != nil {
			s.sessions.Clear(c)
			AbortWithError(c, err)
			return
		}

		if res.NewCredential != "" {
			s.sessions.Set(c, res.NewCredential, res.NewExpiresAt)
		}

		c.Set(ctxUserKey, res.User)
		c.Set(ctxSessionKey, res.Session)
		c.Next()
	}
}

func currentUser(c *gin.Context) *domain.User {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*domain.User)
	return u
}

func currentSession(c *gin.Context) *domain.AppSession {
	v, ok := c.Get(ctxSessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*domain.AppSession)
	return sess
}
