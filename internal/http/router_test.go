package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/craftlab/canvas-gateway/internal/config"
	"github.com/craftlab/canvas-gateway/internal/domain"
	"github.com/craftlab/canvas-gateway/internal/http/handler"
	httpmiddleware "github.com/craftlab/canvas-gateway/internal/http/middleware"
	"github.com/craftlab/canvas-gateway/internal/mailer"
	"github.com/craftlab/canvas-gateway/internal/proxy"
	"github.com/craftlab/canvas-gateway/internal/repository"
	"github.com/craftlab/canvas-gateway/internal/resolver"
	"github.com/craftlab/canvas-gateway/internal/service"
	"github.com/craftlab/canvas-gateway/internal/token"
	"github.com/craftlab/canvas-gateway/internal/verifier"
)

type gatewayFixture struct {
	router   http.Handler
	repo     *repository.MemoryUserRepo
	tokens   *token.Generator
	upstream *httptest.Server
	seen     *[]string
}

type nullCodeStore struct{}

func (nullCodeStore) Save(context.Context, string, string, string, time.Duration) error { return nil }
func (nullCodeStore) Consume(context.Context, string, string, string) error {
	return domain.ErrCodeMismatch
}

func newGateway(t *testing.T) *gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var seen []string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Path+"|"+r.Header.Get("x-user-id"))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(upstream.Close)

	cfg := config.Config{
		ServiceName:            "canvas-gateway",
		TokenSigningSecret:     "test-secret",
		TokenIssuer:            "canvas-gateway",
		AccessTokenTTL:         time.Hour,
		VerificationCodeTTL:    15 * time.Minute,
		DesignServiceURL:       upstream.URL,
		UploadServiceURL:       upstream.URL,
		SubscriptionServiceURL: upstream.URL,
		AdminServiceURL:        upstream.URL,
		ProxyTimeout:           5 * time.Second,
		CORSAllowedOrigins:     []string{"*"},
		CORSAllowedMethods:     []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders:     []string{"Authorization", "Content-Type"},
	}

	repo := repository.NewMemoryUserRepo()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	tokens := token.NewGenerator(cfg.TokenSigningSecret, cfg.TokenIssuer, cfg.AccessTokenTTL)
	res := resolver.New(repo, node, zap.NewNop())
	chain := verifier.NewChain(zap.NewNop(), verifier.NewLocalStrategy(tokens, repo))
	authMW := &httpmiddleware.Auth{Chain: chain, Resolver: res, Logger: zap.NewNop()}

	authSvc := service.NewAuthService(repo, nullCodeStore{}, res, tokens, mailer.NewLogMailer(zap.NewNop()), node, cfg, zap.NewNop())
	userSvc := service.NewUserService(repo, zap.NewNop())

	table, err := proxy.NewTable(cfg, zap.NewNop())
	require.NoError(t, err)

	router := NewRouter(cfg,
		handler.NewAuthHandler(authSvc, zap.NewNop()),
		handler.NewUserHandler(userSvc, zap.NewNop()),
		authMW, table, nil)

	return &gatewayFixture{router: router, repo: repo, tokens: tokens, upstream: upstream, seen: &seen}
}

func TestHealthIsPublic(t *testing.T) {
	g := newGateway(t)
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestGatewayEndpointsWinOverProxy(t *testing.T) {
	g := newGateway(t)

	// /v1/auth/google-login is a gateway endpoint, never proxied.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/google-login", nil)
	g.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Empty(t, *g.seen)
}

func TestProxyRequiresAuth(t *testing.T) {
	g := newGateway(t)

	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/designs/abc", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Empty(t, *g.seen)
}

func TestProxyForwardsResolvedUserID(t *testing.T) {
	g := newGateway(t)
	ctx := context.Background()

	_, err := g.repo.Create(ctx, domain.UserIdentity{ID: "u1", Email: "a@example.com"})
	require.NoError(t, err)
	raw, err := g.tokens.Sign("u1")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/designs/abc", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	req.Header.Set("x-user-id", "spoofed")
	g.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"/api/designs/abc|u1"}, *g.seen)
}

func TestSignupThenLoginThenProfile(t *testing.T) {
	g := newGateway(t)
	ctx := context.Background()

	// Seed a verified local account directly; the code store used in
	// this fixture never matches.
	_, err := g.repo.Create(ctx, domain.UserIdentity{ID: "u2", Email: "b@example.com", DisplayName: "Bob", Verified: true})
	require.NoError(t, err)
	raw, err := g.tokens.Sign("u2")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/users/profile", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	g.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "Bob", resp.Data.Name)
}
