package testutil

import (
	"strings"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/fabmarket-api/middleware"
)

// TestIssuer is the issuer placed on mock claims
const TestIssuer = "https://fabmarket-test.auth0.com/"

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(subject, role string, scopes []string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  TestIssuer,
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Scope: strings.Join(scopes, " "),
			Role:  role,
		},
	}
}

// SetMockAuthContext sets up a mock authenticated context for testing
func SetMockAuthContext(c *gin.Context, userID, role string, scopes []string) {
	c.Set(middleware.ContextUserID, userID)
	c.Set(middleware.ContextAccessToken, "test-access-token-"+userID)
	c.Set(middleware.ContextClaims, MockValidatedClaims(userID, role, scopes))
}

// MockAuthMiddleware authenticates every request as the subject named in
// the X-Test-User header, with the role and space separated scopes from
// X-Test-Role and X-Test-Scopes. Requests without a subject are rejected the
// way the real JWT middleware rejects a missing token.
func MockAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.GetHeader("X-Test-User")
		if subject == "" {
			c.AbortWithStatusJSON(401, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Failed to validate JWT.",
				},
			})
			return
		}
		SetMockAuthContext(c, subject, c.GetHeader("X-Test-Role"), strings.Fields(c.GetHeader("X-Test-Scopes")))
		c.Next()
	}
}
