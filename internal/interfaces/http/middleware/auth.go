package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/schoolbill/backend/internal/domain/identity"
	"github.com/schoolbill/backend/internal/infrastructure/auth"
	"github.com/schoolbill/backend/internal/interfaces/http/dto"
)

// ActorKey is the gin context key under which the authenticated actor is
// stored.
const ActorKey = "actor"

// AuthConfig holds JWT authentication middleware configuration
type AuthConfig struct {
	JWTService *auth.JWTService
	Blacklist  auth.TokenBlacklist
	// SkipPaths are exact request paths that bypass authentication.
	SkipPaths []string
	Logger    *zap.Logger
}

// Auth returns a middleware that validates the Bearer access token,
// rejects revoked tokens and stores the resulting actor in the context.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		token, ok := extractBearerToken(c)
		if !ok {
			abortUnauthorized(c, "Missing or malformed Authorization header")
			return
		}

		claims, err := cfg.JWTService.ValidateAccessToken(token)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		if cfg.Blacklist != nil && claims.ID != "" {
			revoked, err := cfg.Blacklist.IsBlacklisted(c.Request.Context(), claims.ID)
			if err != nil {
				// Availability over strictness: a blacklist outage must
				// not take down every authenticated endpoint.
				log.Warn("token blacklist check failed",
					zap.String("jti", claims.ID),
					zap.Error(err))
			} else if revoked {
				abortUnauthorized(c, "Token has been revoked")
				return
			}
		}

		actor, err := actorFromClaims(claims)
		if err != nil {
			abortUnauthorized(c, "Invalid token claims")
			return
		}

		c.Set(ActorKey, actor)
		c.Next()
	}
}

// RequireAdmin aborts with 403 unless the authenticated actor is an admin.
// It must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			abortUnauthorized(c, "Authentication required")
			return
		}
		if !actor.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(
				dto.CodeForbidden, "Admin role required", GetRequestID(c)))
			return
		}
		c.Next()
	}
}

// GetActor returns the actor stored by the Auth middleware.
func GetActor(c *gin.Context) (identity.Actor, bool) {
	v, ok := c.Get(ActorKey)
	if !ok {
		return identity.Actor{}, false
	}
	actor, ok := v.(identity.Actor)
	return actor, ok
}

func extractBearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func actorFromClaims(claims *auth.Claims) (identity.Actor, error) {
	userID, err := claims.GetUserUUID()
	if err != nil {
		return identity.Actor{}, err
	}
	schoolID, err := claims.GetSchoolUUID()
	if err != nil {
		return identity.Actor{}, err
	}
	return identity.Actor{
		UserID:   userID,
		Username: claims.Username,
		Role:     identity.Role(claims.Role),
		SchoolID: schoolID,
	}, nil
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
		dto.CodeUnauthorized, message, GetRequestID(c)))
}
