package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/gin-forms-api/internal/access"
	"github.com/franciscosanchezn/gin-forms-api/internal/auth"
	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// Context keys set by Authenticate
const (
	PrincipalKey = "principal"
	UserIDKey    = "userID"
	UserRoleKey  = "userRole"
	ClaimsKey    = "claims"
	ClientIDKey  = "clientID"
	AuthTypeKey  = "auth_type"
)

// UserLookup loads the current user row for a token subject
type UserLookup interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// ClientTokenLookup confirms a client-credentials token is still on record
type ClientTokenLookup interface {
	IsActive(ctx context.Context, clientID, access string) (bool, error)
}

// Authenticate validates the bearer token and stores the caller in the
// context. The role comes from the stored user, never from the token, so a
// demotion takes effect on the next request. Tokens carrying a client
// audience are refused unless clientTokens still holds them; a nil
// clientTokens refuses every client token.
func Authenticate(issuer *auth.TokenIssuer, revocations auth.RevocationStore, users UserLookup, clientTokens ClientTokenLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		// RFC 6750: Extract Bearer token from Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, models.ErrTokenMissing, "Missing Authorization header. A valid Bearer token is required.")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortUnauthorized(c, models.ErrTokenInvalid, "Authorization header must use Bearer scheme. Format: 'Bearer <token>'")
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if tokenString == "" {
			abortUnauthorized(c, models.ErrTokenMissing, "Bearer token is empty")
			return
		}

		claims, err := issuer.Verify(tokenString)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				abortUnauthorized(c, models.ErrTokenExpired, "Token has expired")
				return
			}
			log.WithError(err).Debug("Rejected bearer token")
			abortUnauthorized(c, models.ErrTokenInvalid, "Token is invalid")
			return
		}

		revoked, err := revocations.IsRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			log.WithError(err).Error("Revocation lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				models.NewAPIError(models.ErrInternalServer, "An unexpected error occurred"))
			return
		}
		if revoked {
			abortUnauthorized(c, models.ErrTokenRevoked, "Token has been revoked")
			return
		}

		clientID := ""
		if len(claims.Audience) > 0 {
			clientID = claims.Audience[0]
		}
		if clientID != "" {
			if clientTokens == nil {
				abortUnauthorized(c, models.ErrTokenInvalid, "Client tokens are not accepted")
				return
			}
			active, err := clientTokens.IsActive(c.Request.Context(), clientID, tokenString)
			if err != nil {
				log.WithError(err).Error("Client token lookup failed")
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					models.NewAPIError(models.ErrInternalServer, "An unexpected error occurred"))
				return
			}
			if !active {
				abortUnauthorized(c, models.ErrTokenRevoked, "Client token is no longer valid")
				return
			}
		}

		userID, _ := claims.UserID()
		user, err := users.GetByID(c.Request.Context(), userID)
		if err != nil {
			if models.IsKind(err, models.KindNotFound) {
				abortUnauthorized(c, models.ErrTokenInvalid, "Token subject no longer exists")
				return
			}
			log.WithError(err).Error("Failed to load token subject")
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				models.NewAPIError(models.ErrInternalServer, "An unexpected error occurred"))
			return
		}

		setPrincipal(c, access.Principal{UserID: user.ID, Role: user.Role})
		c.Set(ClaimsKey, claims)

		// Client-credentials tokens carry the client id as audience
		if clientID != "" {
			c.Set(ClientIDKey, clientID)
			c.Set(AuthTypeKey, "oauth2")
		} else {
			c.Set(AuthTypeKey, "jwt")
		}

		c.Next()
	}
}

// abortUnauthorized responds with the RFC 6750 challenge and a stable error code
func abortUnauthorized(c *gin.Context, code, message string) {
	c.Header("WWW-Authenticate", `Bearer realm="forms"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewAPIError(code, message))
}

func setPrincipal(c *gin.Context, p access.Principal) {
	c.Set(PrincipalKey, p)
	c.Set(UserIDKey, p.UserID)
	c.Set(UserRoleKey, p.Role)
}

// GetPrincipal returns the caller stored by Authenticate
func GetPrincipal(c *gin.Context) (access.Principal, bool) {
	value, exists := c.Get(PrincipalKey)
	if !exists {
		return access.Principal{}, false
	}
	p, ok := value.(access.Principal)
	return p, ok
}

// GetClaims returns the verified token claims stored by Authenticate
func GetClaims(c *gin.Context) (*auth.Claims, bool) {
	value, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*auth.Claims)
	return claims, ok
}
