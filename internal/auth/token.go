package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/blackdoglabs/analytics-platform/internal/models"
)

// identityCtxKey is the Gin context key used to store the resolved identity.
const identityCtxKey = "auth_identity"

// Identity is the verified caller identity the core operates on. TenantID is
// the only tenant scope any store or aggregator call ever sees; it is never
// taken from a request body or query parameter.
type Identity struct {
	TenantID string
	Subject  string
	Role     string
}

// Middleware enforces Bearer-token authentication and resolves the token to
// an identity. The token table stands in for real JWT verification, which
// would live in an external identity layer.
func Middleware(tokens map[string]Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				ErrorType: models.ErrTypeUnauthorized,
				Message:   "missing or invalid authorization header",
			})
			return
		}

		id, ok := tokens[strings.TrimSpace(strings.TrimPrefix(header, prefix))]
		if !ok || id.TenantID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				ErrorType: models.ErrTypeUnauthorized,
				Message:   "invalid token",
			})
			return
		}

		c.Set(identityCtxKey, id)
		c.Next()
	}
}

// FromContext returns the resolved identity for the request. The zero value
// means the request never passed the middleware; handlers fail closed on it.
func FromContext(c *gin.Context) Identity {
	v, _ := c.Get(identityCtxKey)
	id, _ := v.(Identity)
	return id
}
