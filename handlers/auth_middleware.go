package handlers

import (
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/proplio/api/authz"
	"github.com/proplio/api/services"
)

// SupabaseAuthMiddleware validates Supabase JWTs and stashes the account id
// in the gin context. It deliberately knows nothing about profiles: identity
// is resolved here, the domain profile one middleware later.
type SupabaseAuthMiddleware struct {
	SupabaseAuth *services.SupabaseAuthService
}

func NewSupabaseAuthMiddleware() *SupabaseAuthMiddleware {
	supabaseURL := os.Getenv("SUPABASE_URL")
	jwtSecret := os.Getenv("SUPABASE_JWT_SECRET") // Legacy: only needed for HS256

	if supabaseURL == "" {
		log.Fatal("Missing SUPABASE_URL configuration")
	}

	return &SupabaseAuthMiddleware{
		SupabaseAuth: services.NewSupabaseAuthService(supabaseURL, jwtSecret),
	}
}

// OptionalAuth validates the bearer token when one is present and sets the
// account id. Requests without (or with invalid) credentials continue
// unauthenticated; the route gate decides what they may reach.
func (m *SupabaseAuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			token, err := m.SupabaseAuth.ExtractTokenFromHeader(authHeader)
			if err == nil {
				claims, err := m.SupabaseAuth.ValidateToken(token)
				if err == nil {
					c.Set(string(authz.ContextKeyAccountID), claims.AccountID)
					c.Set("account_email", claims.Email)
				}
			}
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a valid bearer token.
func (m *SupabaseAuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			c.Abort()
			return
		}

		token, err := m.SupabaseAuth.ExtractTokenFromHeader(authHeader)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		claims, err := m.SupabaseAuth.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token: " + err.Error()})
			c.Abort()
			return
		}

		c.Set(string(authz.ContextKeyAccountID), claims.AccountID)
		c.Set("account_email", claims.Email)

		log.Printf("AUTH SUCCESS - Account: %s (%s)", claims.Email, claims.AccountID)

		c.Next()
	}
}
