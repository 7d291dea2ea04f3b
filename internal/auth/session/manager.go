package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/agrovista/agrigate/internal/config"
	"github.com/gin-gonic/gin"
)

const DefaultCookieName = "session_token"

// Manager manages the session credential cookie. The cookie carries the
// provider access token; an Authorization bearer header is accepted as a
// fallback transport.
type Manager struct {
	cookieName string
	secure     bool
}

func NewManager(cfg config.Config) *Manager {
	return &Manager{
		cookieName: DefaultCookieName,
		secure:     cfg.AuthCookieSecure,
	}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

// ReadCredential extracts the session credential from the cookie, falling back
// to an Authorization header of form "Bearer <token>".
func (m *Manager) ReadCredential(c *gin.Context) (string, bool) {
	token, err := c.Cookie(m.cookieName)
	if err == nil && strings.TrimSpace(token) != "" {
		return token, true
	}

	raw := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		token = strings.TrimSpace(raw[len("Bearer "):])
		if token != "" {
			return token, true
		}
	}
	return "", false
}

func (m *Manager) Set(c *gin.Context, value string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, value, maxAge, "/", "", m.secure, true)
}

func (m *Manager) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, "", -1, "/", "", m.secure, true)
}
