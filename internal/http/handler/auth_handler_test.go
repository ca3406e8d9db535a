package handler

import (
	"bytes"
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
	"github.com/craftlab/canvas-gateway/internal/mailer"
	"github.com/craftlab/canvas-gateway/internal/repository"
	"github.com/craftlab/canvas-gateway/internal/resolver"
	"github.com/craftlab/canvas-gateway/internal/service"
	"github.com/craftlab/canvas-gateway/internal/token"
)

type memCodeStore struct {
	codes map[string]string
}

func (s *memCodeStore) Save(_ context.Context, purpose, email, code string, _ time.Duration) error {
	s.codes[purpose+":"+email] = code
	return nil
}

func (s *memCodeStore) Consume(_ context.Context, purpose, email, code string) error {
	key := purpose + ":" + email
	if s.codes[key] != code {
		return domain.ErrCodeMismatch
	}
	delete(s.codes, key)
	return nil
}

func newAuthRouter(t *testing.T) (*gin.Engine, *repository.MemoryUserRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repository.NewMemoryUserRepo()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{
		TokenSigningSecret:  "test-secret",
		TokenIssuer:         "canvas-gateway",
		AccessTokenTTL:      time.Hour,
		VerificationCodeTTL: 15 * time.Minute,
	}
	tokens := token.NewGenerator(cfg.TokenSigningSecret, cfg.TokenIssuer, cfg.AccessTokenTTL)
	res := resolver.New(repo, node, zap.NewNop())
	codes := &memCodeStore{codes: map[string]string{}}
	svc := service.NewAuthService(repo, codes, res, tokens, mailer.NewLogMailer(zap.NewNop()), node, cfg, zap.NewNop())

	h := NewAuthHandler(svc, zap.NewNop())
	r := gin.New()
	auth := r.Group("/v1/auth")
	auth.POST("/google-login", h.GoogleLogin)
	auth.POST("/signup", h.Signup)
	auth.POST("/login", h.Login)
	return r, repo
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestGoogleLoginEndpoint(t *testing.T) {
	router, _ := newAuthRouter(t)

	payload := gin.H{
		"googleId": "sub-1",
		"email":    "a@example.com",
		"name":     "Alice",
		"image":    "https://img/a.png",
	}

	w := postJSON(router, "/v1/auth/google-login", payload)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Success bool                `json:"success"`
		Message string              `json:"message"`
		User    domain.UserIdentity `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.True(t, created.Success)
	require.Equal(t, "User created and logged in successfully", created.Message)
	require.Equal(t, int64(1), created.User.LoginCount)

	w = postJSON(router, "/v1/auth/google-login", payload)
	require.Equal(t, http.StatusOK, w.Code)

	var existing struct {
		Success bool                `json:"success"`
		Message string              `json:"message"`
		User    domain.UserIdentity `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &existing))
	require.Equal(t, "User logged in successfully", existing.Message)
	require.Equal(t, created.User.ID, existing.User.ID)
	require.Equal(t, int64(2), existing.User.LoginCount)
}

func TestGoogleLoginMissingFields(t *testing.T) {
	router, _ := newAuthRouter(t)

	w := postJSON(router, "/v1/auth/google-login", gin.H{"email": "a@example.com"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(router, "/v1/auth/google-login", gin.H{"googleId": "sub-1"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGoogleLoginAcceptsExternalIDKey(t *testing.T) {
	router, _ := newAuthRouter(t)

	w := postJSON(router, "/v1/auth/google-login", gin.H{"externalId": "sub-2", "email": "c@example.com"})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		User domain.UserIdentity `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "sub-2", resp.User.ExternalID)
}

func TestGoogleLoginNeverExposesCredentialHash(t *testing.T) {
	router, _ := newAuthRouter(t)
	w := postJSON(router, "/v1/auth/google-login", gin.H{"googleId": "sub-1", "email": "a@example.com"})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotContains(t, w.Body.String(), "credential")
	require.NotContains(t, w.Body.String(), "hash")
}

func TestSignupEndpointConflict(t *testing.T) {
	router, _ := newAuthRouter(t)

	w := postJSON(router, "/v1/auth/signup", gin.H{"name": "Bob", "email": "b@example.com", "password": "hunter2"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(router, "/v1/auth/signup", gin.H{"name": "Bob", "email": "b@example.com", "password": "hunter2"})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestLoginEndpointWrongPassword(t *testing.T) {
	router, _ := newAuthRouter(t)

	w := postJSON(router, "/v1/auth/signup", gin.H{"name": "Bob", "email": "b@example.com", "password": "hunter2"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(router, "/v1/auth/login", gin.H{"email": "b@example.com", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
