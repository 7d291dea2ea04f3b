package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/agrovista/agrigate/internal/config"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Claims are the token fields the session lifecycle cares about.
type Claims struct {
	Subject   string
	SessionID string
	ExpiresAt time.Time
}

// Validator verifies provider-issued access tokens against the JWKS.
type Validator struct {
	keyset   *Keyset
	audience string
}

func NewValidator(keyset *Keyset, cfg config.Config) *Validator {
	return &Validator{
		keyset:   keyset,
		audience: cfg.WorkOS.ClientID,
	}
}

// Validate checks the token signature, expiry and audience and returns the
// decoded claims. The only network call is the keyset lookup.
func (v *Validator) Validate(ctx context.Context, token string) (*Claims, error) {
	kid, err := tokenKeyID(token)
	if err != nil {
		return nil, err
	}

	key, err := v.keyset.Lookup(ctx, kid)
	if err != nil {
		return nil, err
	}

	options := []jwt.ParseOption{
		jwt.WithKey(jwa.RS256, key),
		jwt.WithValidate(true),
	}
	if v.audience != "" {
		options = append(options, jwt.WithAudience(v.audience))
	}

	parsed, err := jwt.Parse([]byte(token), options...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return claimsFromToken(parsed), nil
}

// ParseInsecure decodes claims without verifying the signature. Used only for
// best-effort logout cleanup of expired credentials.
func ParseInsecure(token string) (*Claims, error) {
	parsed, err := jwt.ParseInsecure([]byte(token))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claimsFromToken(parsed), nil
}

func claimsFromToken(parsed jwt.Token) *Claims {
	claims := &Claims{
		Subject:   parsed.Subject(),
		ExpiresAt: parsed.Expiration(),
	}
	if sid, ok := parsed.Get("sid"); ok {
		if str, ok := sid.(string); ok {
			claims.SessionID = str
		}
	}
	return claims
}

func tokenKeyID(token string) (string, error) {
	msg, err := jws.ParseString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	signatures := msg.Signatures()
	if len(signatures) == 0 {
		return "", fmt.Errorf("%w: no signature", ErrInvalidToken)
	}
	kid := signatures[0].ProtectedHeaders().KeyID()
	if kid == "" {
		return "", fmt.Errorf("%w: no kid in token header", ErrInvalidToken)
	}
	return kid, nil
}
