package gateway

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/models"
)

const principalKey = "principal"

// requireAdmin rejects requests without a valid bearer token.
func (g *Gateway) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == header {
			token = ""
		}

		principal, err := g.services.Auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			g.fail(c, err)
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

func principal(c *gin.Context) *auth.Principal {
	return c.MustGet(principalKey).(*auth.Principal)
}

func adminView(a *models.AdminUser) gin.H {
	return gin.H{"id": a.ID, "email": a.Email, "role": a.Role}
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (g *Gateway) login(c *gin.Context) {
	var body loginBody
	if err := bindJSON(c, &body); err != nil {
		g.fail(c, err)
		return
	}

	session, err := g.services.Auth.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		g.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"token": session.Token, "admin": adminView(session.Admin)})
}

func (g *Gateway) me(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"admin": adminView(principal(c).Admin)})
}

func (g *Gateway) logout(c *gin.Context) {
	if err := g.services.Auth.Logout(c.Request.Context(), principal(c)); err != nil {
		g.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "Logged out successfully"})
}
