package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"mayfly-forms/internal/metrics"
	"mayfly-forms/internal/middleware"
)

// RouterOptions configura o engine HTTP
type RouterOptions struct {
	// TrustedProxies vazio faz o IP do cliente vir sempre do socket
	TrustedProxies     []string
	CORSAllowedOrigins []string
	Metrics            *metrics.Metrics
}

// NewRouter monta o engine gin com os middlewares globais e o envolve com CORS
func NewRouter(h *Handlers, opts RouterOptions) (http.Handler, error) {
	router := gin.New()
	router.HandleMethodNotAllowed = true

	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	router.Use(gin.Recovery())
	router.Use(middleware.RequestContext(h.logger))
	router.Use(middleware.HTTPMetrics(opts.Metrics))

	h.SetupRoutes(router)

	return middleware.CORS(opts.CORSAllowedOrigins)(router), nil
}
