package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/agrovista/agrigate/internal/auth/domain"
	"github.com/agrovista/agrigate/internal/identity"
	"github.com/agrovista/agrigate/internal/inference"
	"github.com/gin-gonic/gin"
)

// ErrorHandlingMiddleware converts errors attached to the gin context into a
// JSON body of the form {"detail": "..."} with a status mapped from the error
// class. Non-2xx upstream responses from the inference service are relayed
// with the upstream's own status and payload. Handlers call AbortWithError
// and return.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		if c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err

		var upstream *inference.HTTPError
		if errors.As(err, &upstream) {
			if upstream.IsJSON {
				c.Data(upstream.StatusCode, "application/json", upstream.Body)
			} else {
				c.JSON(upstream.StatusCode, gin.H{"detail": string(upstream.Body)})
			}
			return
		}

		status, detail := mapError(err)
		c.JSON(status, gin.H{"detail": detail})
	}
}

func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated),
		errors.Is(err, identity.ErrInvalidToken),
		errors.Is(err, identity.ErrUnknownKey),
		errors.Is(err, identity.ErrRefreshFailed),
		errors.Is(err, domain.ErrRefreshFailed):
		return http.StatusUnauthorized, "Not authenticated"
	case errors.Is(err, domain.ErrProvisioning):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, identity.ErrExchangeFailed):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, inference.ErrTimeout):
		return http.StatusGatewayTimeout, "AI microservice timed out"
	case errors.Is(err, inference.ErrUnavailable):
		detail := strings.TrimPrefix(err.Error(), inference.ErrUnavailable.Error()+": ")
		return http.StatusServiceUnavailable, "AI microservice unavailable: " + detail
	case errors.Is(err, identity.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, "identity provider unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
