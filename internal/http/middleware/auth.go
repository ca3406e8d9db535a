package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/craftlab/canvas-gateway/internal/domain"
	"github.com/craftlab/canvas-gateway/internal/resolver"
	"github.com/craftlab/canvas-gateway/internal/verifier"
)

const (
	userKey = "authUser"

	// UserIDHeader carries the durable user id to upstream services.
	UserIDHeader = "x-user-id"
)

// Auth terminates authentication for protected routes. It verifies the
// bearer credential, resolves it onto a durable user and stamps the
// downstream request with the user id.
type Auth struct {
	Chain    *verifier.Chain
	Resolver *resolver.Resolver
	Logger   *zap.Logger
}

// RequireUser aborts with 401 unless the request carries a verifiable
// credential that resolves to a user.
func (m *Auth) RequireUser(c *gin.Context) {
	raw := bearerToken(c)
	if raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No token provided"})
		return
	}

	claim, err := m.Chain.Verify(c.Request.Context(), raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid credential"})
		return
	}

	res, err := m.Resolver.Resolve(c.Request.Context(), claim)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			m.Logger.Error("identity resolution conflict persisted past retry",
				zap.String("subject", claim.SubjectID))
		} else {
			m.Logger.Error("identity resolution failed",
				zap.String("subject", claim.SubjectID),
				zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid credential"})
		return
	}

	// Strip any client-supplied value first so upstreams only ever see
	// the id the gateway resolved.
	c.Request.Header.Del(UserIDHeader)
	c.Request.Header.Set(UserIDHeader, res.User.ID)
	c.Set(userKey, res.User)
	c.Next()
}

// GetUser returns the resolved user for the current request.
func GetUser(c *gin.Context) (domain.UserIdentity, bool) {
	value, ok := c.Get(userKey)
	if !ok {
		return domain.UserIdentity{}, false
	}
	user, ok := value.(domain.UserIdentity)
	return user, ok
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
