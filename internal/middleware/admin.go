package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mayfly-forms/internal/domain"
)

// HeaderAdminToken carrega o token das rotas administrativas
const HeaderAdminToken = "X-Admin-Token"

// AdminAuth protege as rotas administrativas comparando o token em tempo constante
func AdminAuth(token string, log domain.Logger) gin.HandlerFunc {
	expected := []byte(token)

	return func(c *gin.Context) {
		provided := []byte(strings.TrimSpace(c.GetHeader(HeaderAdminToken)))
		if len(expected) == 0 || subtle.ConstantTimeCompare(provided, expected) != 1 {
			log.WithContext(c.Request.Context()).Warn("Admin request rejected", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "invalid or missing admin token",
			})
			return
		}
		c.Next()
	}
}
