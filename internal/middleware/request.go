package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mayfly-forms/internal/auth"
	"mayfly-forms/internal/domain"
	"mayfly-forms/internal/logger"
)

const (
	// HeaderAPIKey é o header com a API key do site cliente
	HeaderAPIKey = "X-API-Key"
	// HeaderRequestID propaga o identificador da requisição
	HeaderRequestID = "X-Request-ID"

	maxRequestIDLength = 64
)

// RequestContext gera o Request ID e enriquece o contexto da requisição para logging
func RequestContext(log domain.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := getRequestID(c)

		ctx := logger.ContextWithRequestInfo(
			c.Request.Context(),
			requestID,
			c.ClientIP(),
			auth.Fingerprint(GetAPIKey(c)),
			c.GetHeader("User-Agent"),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		log.WithContext(ctx).Debug("Request completed", map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": float64(time.Since(start).Nanoseconds()) / 1e6,
		})
	}
}

// getRequestID reaproveita um X-Request-ID razoável ou gera um novo
func getRequestID(c *gin.Context) string {
	requestID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
	if requestID == "" || len(requestID) > maxRequestIDLength || strings.ContainsAny(requestID, "\r\n") {
		requestID = uuid.New().String()
	}
	c.Header(HeaderRequestID, requestID)
	return requestID
}

// GetAPIKey extrai a API key dos headers
func GetAPIKey(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(HeaderAPIKey))
}
