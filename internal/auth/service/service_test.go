package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agrovista/agrigate/internal/auth/domain"
	"github.com/agrovista/agrigate/internal/auth/repository"
	"github.com/agrovista/agrigate/internal/config"
	"github.com/agrovista/agrigate/internal/identity"
	"github.com/agrovista/agrigate/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"
)

const testClientID = "client_test_123"

type fakeProvider struct {
	authResult   *identity.AuthenticateResult
	authErr      error
	refreshPair  *identity.TokenPair
	refreshErr   error
	refreshCalls atomic.Int64
}

func (f *fakeProvider) AuthorizationURL(state string) string {
	return "https://idp.example/authorize?state=" + state
}

func (f *fakeProvider) Authenticate(context.Context, string) (*identity.AuthenticateResult, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return f.authResult, nil
}

func (f *fakeProvider) Refresh(context.Context, string) (*identity.TokenPair, error) {
	f.refreshCalls.Add(1)
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshPair, nil
}

func (f *fakeProvider) LogoutURL(sessionID string) string {
	return "https://idp.example/logout?session_id=" + sessionID
}

type testEnv struct {
	svc      domain.Service
	provider *fakeProvider
	users    domain.UserRepository
	sessions domain.SessionRepository
	logs     domain.LogRepository
	signKey  jwk.Key
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate rsa key: %v", err)
	}
	private, err := jwk.FromRaw(raw)
	if err != nil {
		t.Fatalf("failed to wrap key: %v", err)
	}
	_ = private.Set(jwk.KeyIDKey, "kid-test")
	_ = private.Set(jwk.AlgorithmKey, jwa.RS256)
	public, err := private.PublicKey()
	if err != nil {
		t.Fatalf("failed to derive public key: %v", err)
	}
	set := jwk.NewSet()
	_ = set.AddKey(public)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(srv.Close)

	cfg := config.Config{
		WorkOS: config.WorkOSConfig{
			ClientID:     testClientID,
			JWKSURL:      srv.URL,
			JWKSCacheTTL: 15 * time.Minute,
			FetchTimeout: 2 * time.Second,
		},
	}

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(
		&domain.User{},
		&domain.AppSession{},
		&domain.ActivityLog{},
		&domain.Log{},
		&domain.PredictionLog{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to init snowflake: %v", err)
	}

	users, sessions, logs := repository.New(dbConn, node)
	provider := &fakeProvider{}
	validator := identity.NewValidator(identity.NewKeyset(zap.NewNop(), cfg), cfg)

	return &testEnv{
		svc:      New(zap.NewNop(), users, sessions, logs, provider, validator),
		provider: provider,
		users:    users,
		sessions: sessions,
		logs:     logs,
		signKey:  private,
	}
}

func (e *testEnv) signToken(t *testing.T, sub, sid string, exp time.Time) string {
	t.Helper()

	tok := jwt.New()
	_ = tok.Set(jwt.SubjectKey, sub)
	_ = tok.Set("sid", sid)
	_ = tok.Set(jwt.AudienceKey, testClientID)
	_ = tok.Set(jwt.IssuedAtKey, time.Now().Add(-time.Minute))
	_ = tok.Set(jwt.ExpirationKey, exp)

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, e.signKey))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return string(signed)
}

// login runs a full callback and returns the created session credential.
func (e *testEnv) login(t *testing.T, sub, sid string, exp time.Time) (*domain.LoginCallbackResult, string) {
	t.Helper()

	token := e.signToken(t, sub, sid, exp)
	e.provider.authResult = &identity.AuthenticateResult{
		AccessToken:  token,
		RefreshToken: "refresh-1",
		SessionID:    sid,
		User: identity.Profile{
			ID:        sub,
			Email:     "farmer@example.com",
			FirstName: "Ada",
			LastName:  "Okafor",
		},
	}

	res, err := e.svc.LoginCallback(context.Background(), domain.LoginCallbackRequest{
		Code:      "code-1",
		IPAddress: "203.0.113.9",
		UserAgent: "agrigate-test",
	})
	if err != nil {
		t.Fatalf("login callback failed: %v", err)
	}
	return res, token
}

func TestLoginCallbackCreatesSession(t *testing.T) {
	env := newTestEnv(t)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	res, token := env.login(t, "user_01", "session_01", exp)

	if res.Credential != token {
		t.Fatal("expected credential to be the provider access token")
	}
	if !res.ExpiresAt.Equal(exp) {
		t.Fatalf("expected expiry %v, got %v", exp, res.ExpiresAt)
	}
	if res.User.Email != "farmer@example.com" {
		t.Fatalf("unexpected user email %q", res.User.Email)
	}
	if res.User.FullName != "Ada Okafor" {
		t.Fatalf("unexpected full name %q", res.User.FullName)
	}

	session, err := env.sessions.GetByWorkOSSessionID(context.Background(), "session_01")
	if err != nil {
		t.Fatalf("expected stored session: %v", err)
	}
	if !session.IsActive {
		t.Fatal("expected new session to be active")
	}
	if session.UserID != res.User.ID {
		t.Fatal("expected session linked to the user")
	}
	if session.IPAddress != "203.0.113.9" || session.UserAgent != "agrigate-test" {
		t.Fatalf("unexpected session metadata: %+v", session)
	}
}

func TestLoginCallbackMissingCode(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.LoginCallback(context.Background(), domain.LoginCallbackRequest{Code: "  "})
	if !errors.Is(err, domain.ErrProvisioning) {
		t.Fatalf("expected ErrProvisioning, got %v", err)
	}
}

func TestLoginCallbackUpsertIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	exp := time.Now().Add(time.Hour)
	first, _ := env.login(t, "user_01", "session_01", exp)
	second, _ := env.login(t, "user_01", "session_02", exp)

	if first.User.ID != second.User.ID {
		t.Fatalf("expected same user across logins, got %v and %v", first.User.ID, second.User.ID)
	}

	all, err := env.users.List(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one user row, got %d", len(all))
	}
}

func TestAuthenticateHappyPath(t *testing.T) {
	env := newTestEnv(t)

	exp := time.Now().Add(time.Hour)
	res, token := env.login(t, "user_01", "session_01", exp)

	auth, err := env.svc.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if auth.User.ID != res.User.ID {
		t.Fatal("expected the logged-in user")
	}
	if auth.NewCredential != "" {
		t.Fatal("expected no refresh for a fresh token")
	}
	if got := env.provider.refreshCalls.Load(); got != 0 {
		t.Fatalf("expected no provider refresh, got %d", got)
	}
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	env := newTestEnv(t)

	for _, credential := range []string{"", "   ", "not-a-jwt", "a.b.c"} {
		if _, err := env.svc.Authenticate(context.Background(), credential); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("expected ErrUnauthenticated for %q, got %v", credential, err)
		}
	}
}

func TestAuthenticateProactiveRefresh(t *testing.T) {
	env := newTestEnv(t)

	// Inside the refresh window but still valid.
	exp := time.Now().Add(2 * time.Minute)
	_, token := env.login(t, "user_01", "session_01", exp)

	newExp := time.Now().Add(time.Hour).Truncate(time.Second)
	newToken := env.signToken(t, "user_01", "session_01", newExp)
	env.provider.refreshPair = &identity.TokenPair{
		AccessToken:  newToken,
		RefreshToken: "refresh-2",
	}

	auth, err := env.svc.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if auth.NewCredential != newToken {
		t.Fatal("expected the rotated access token as new credential")
	}
	if !auth.NewExpiresAt.Equal(newExp) {
		t.Fatalf("expected new expiry %v, got %v", newExp, auth.NewExpiresAt)
	}

	session, err := env.sessions.GetByWorkOSSessionID(context.Background(), "session_01")
	if err != nil {
		t.Fatalf("session lookup failed: %v", err)
	}
	if session.AccessToken != newToken || session.RefreshToken != "refresh-2" {
		t.Fatal("expected rotated tokens persisted on the session")
	}

	// The rotated token sits outside the window, so the next call must not
	// hit the provider again.
	if _, err := env.svc.Authenticate(context.Background(), newToken); err != nil {
		t.Fatalf("authenticate with rotated token failed: %v", err)
	}
	if got := env.provider.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one provider refresh, got %d", got)
	}
}

func TestAuthenticateRefreshFailureInvalidatesSession(t *testing.T) {
	env := newTestEnv(t)

	exp := time.Now().Add(time.Minute)
	_, token := env.login(t, "user_01", "session_01", exp)
	env.provider.refreshErr = errors.New("provider returned 401")

	_, err := env.svc.Authenticate(context.Background(), token)
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}

	session, err := env.sessions.GetByWorkOSSessionID(context.Background(), "session_01")
	if err != nil {
		t.Fatalf("session lookup failed: %v", err)
	}
	if session.IsActive {
		t.Fatal("expected session invalidated after refresh failure")
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	env := newTestEnv(t)

	exp := time.Now().Add(time.Hour)
	_, token := env.login(t, "user_01", "session_01", exp)

	res, err := env.svc.Logout(context.Background(), token)
	if err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if res.WorkOSLogoutURL == "" {
		t.Fatal("expected a provider logout url")
	}

	session, err := env.sessions.GetByWorkOSSessionID(context.Background(), "session_01")
	if err != nil {
		t.Fatalf("session lookup failed: %v", err)
	}
	if session.IsActive {
		t.Fatal("expected session invalidated after logout")
	}

	if _, err := env.svc.Authenticate(context.Background(), token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected old credential rejected after logout, got %v", err)
	}
}

func TestLogoutExpiredTokenStillCleansUp(t *testing.T) {
	env := newTestEnv(t)

	exp := time.Now().Add(time.Hour)
	_, _ = env.login(t, "user_01", "session_01", exp)

	expired := env.signToken(t, "user_01", "session_01", time.Now().Add(-time.Hour))
	res, err := env.svc.Logout(context.Background(), expired)
	if err != nil {
		t.Fatalf("logout with expired token failed: %v", err)
	}
	if res.WorkOSLogoutURL == "" {
		t.Fatal("expected a provider logout url for expired token")
	}

	session, err := env.sessions.GetByWorkOSSessionID(context.Background(), "session_01")
	if err != nil {
		t.Fatalf("session lookup failed: %v", err)
	}
	if session.IsActive {
		t.Fatal("expected session invalidated via unverified claim parsing")
	}
}

func TestLogoutToleratesMissingOrMalformedCredential(t *testing.T) {
	env := newTestEnv(t)

	for _, credential := range []string{"", "nonsense", "x.y.z"} {
		res, err := env.svc.Logout(context.Background(), credential)
		if err != nil {
			t.Fatalf("logout with %q failed: %v", credential, err)
		}
		if res.WorkOSLogoutURL != "" {
			t.Fatalf("expected empty logout url for %q", credential)
		}
	}
}
