package app

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// basicAuthMiddleware enforces HTTP Basic auth for one realm. When enabled
// is false the middleware passes everything through.
func basicAuthMiddleware(enabled bool, realm, username, password string) gin.HandlerFunc {
	challenge := `Basic realm="` + realm + `"`
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		user, pass, hasAuth := c.Request.BasicAuth()
		if !hasAuth {
			c.Header("WWW-Authenticate", challenge)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		// Evaluate both comparisons so timing does not reveal which failed.
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
		if !userMatch || !passMatch {
			c.Header("WWW-Authenticate", challenge)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		c.Next()
	}
}

// adminOnly guards operator routes. With no admin password configured the
// routes answer 403.
func (a *Application) adminOnly() gin.HandlerFunc {
	if a.cfg.AdminPassword == "" {
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "history deletion is disabled"})
		}
	}
	return basicAuthMiddleware(true, "admin", a.cfg.AdminUsername, a.cfg.AdminPassword)
}
