package identity

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/agrovista/agrigate/internal/config"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.uber.org/zap"
)

// Keyset fetches and caches the provider's JSON Web Key Set. Keys are held for
// a bounded TTL and refetched both on expiry and on a lookup miss for an
// unknown kid, so provider key rotation does not require a restart.
type Keyset struct {
	log     *zap.Logger
	url     string
	ttl     time.Duration
	timeout time.Duration
	client  *http.Client

	mu        sync.Mutex
	keys      jwk.Set
	fetchedAt time.Time
}

func NewKeyset(log *zap.Logger, cfg config.Config) *Keyset {
	return &Keyset{
		log:     log.Named("identity.keyset"),
		url:     cfg.WorkOS.JWKSURL,
		ttl:     cfg.WorkOS.JWKSCacheTTL,
		timeout: cfg.WorkOS.FetchTimeout,
		client:  http.DefaultClient,
	}
}

// Lookup returns the signing key for kid, refreshing the cached set when it is
// stale or does not contain the kid.
func (k *Keyset) Lookup(ctx context.Context, kid string) (jwk.Key, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.keys != nil && time.Since(k.fetchedAt) < k.ttl {
		if key, ok := k.keys.LookupKeyID(kid); ok {
			return key, nil
		}
	}

	if err := k.refreshLocked(ctx); err != nil {
		return nil, err
	}

	key, ok := k.keys.LookupKeyID(kid)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, kid)
	}
	return key, nil
}

func (k *Keyset) refreshLocked(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	set, err := jwk.Fetch(fetchCtx, k.url, jwk.WithHTTPClient(k.client))
	if err != nil {
		// A stale set is still better than nothing while the provider is down.
		if k.keys != nil {
			k.log.Warn("jwks refresh failed, keeping cached set", zap.Error(err))
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	k.keys = set
	k.fetchedAt = time.Now()
	k.log.Debug("jwks refreshed", zap.Int("keys", set.Len()))
	return nil
}
