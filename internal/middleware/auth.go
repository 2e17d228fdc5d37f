package middleware

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/logger"

	"github.com/simp-lee/ftthadmin/internal/domain"
	"github.com/simp-lee/ftthadmin/internal/pkg"
)

const userIDContextKey = "user_id"

// AnonymousUserID is the user every request acts as when auth is disabled.
const AnonymousUserID uint = 0

// TokenResolver maps a bearer token to the user that owns it.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*domain.User, error)
}

// AuthConfig controls the Auth middleware.
type AuthConfig struct {
	Enabled bool
	// PublicPaths are served without a token. A path ending in "/" matches
	// every path below it.
	PublicPaths []string
}

// Auth returns a gin middleware that resolves "Authorization: Bearer <token>"
// into the request's user id. Unknown, expired, or missing tokens on
// non-public paths are answered with 401.
//
// With auth disabled every request acts as AnonymousUserID, so per-user data
// such as table preferences is shared by all operators.
func Auth(resolver TokenResolver, cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			setUserID(c, AnonymousUserID)
			c.Next()
			return
		}

		if isPublicPath(cfg.PublicPaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" || resolver == nil {
			pkg.Error(c, domain.ErrUnauthorized)
			c.Abort()
			return
		}

		user, err := resolver.ResolveToken(c.Request.Context(), token)
		if err != nil {
			if !domain.IsUnauthorized(err) && !domain.IsNotFound(err) {
				slog.ErrorContext(c.Request.Context(), "token resolution failed", slog.Any("error", err))
			}
			pkg.Error(c, domain.ErrUnauthorized)
			c.Abort()
			return
		}

		setUserID(c, user.ID)
		ctx := logger.WithContextAttrs(c.Request.Context(), slog.Uint64("user_id", uint64(user.ID)))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// UserID returns the id set by Auth and whether Auth ran for this request.
func UserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get(userIDContextKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

func setUserID(c *gin.Context, id uint) {
	c.Set(userIDContextKey, id)
}

func bearerToken(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func isPublicPath(public []string, path string) bool {
	for _, p := range public {
		if p == path {
			return true
		}
		if strings.HasSuffix(p, "/") && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
