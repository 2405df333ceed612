package handler

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mayfly-forms/internal/domain"
	"mayfly-forms/internal/middleware"
)

const serviceName = "mayfly-forms"

// Options reúne as dependências dos handlers
type Options struct {
	Pipeline     domain.AdmissionService
	Limiter      domain.RateLimiterService
	Receipts     domain.ReceiptStore
	Gatherer     prometheus.Gatherer
	Logger       domain.Logger
	AdminToken   string
	MaxBodyBytes int64
}

// Handlers contém os handlers da API
type Handlers struct {
	pipeline     domain.AdmissionService
	limiter      domain.RateLimiterService
	receipts     domain.ReceiptStore
	gatherer     prometheus.Gatherer
	logger       domain.Logger
	adminToken   string
	maxBodyBytes int64
	startTime    time.Time
}

// NewHandlers cria uma nova instância dos handlers
func NewHandlers(opts Options) *Handlers {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Handlers{
		pipeline:     opts.Pipeline,
		limiter:      opts.Limiter,
		receipts:     opts.Receipts,
		gatherer:     opts.Gatherer,
		logger:       opts.Logger,
		adminToken:   opts.AdminToken,
		maxBodyBytes: opts.MaxBodyBytes,
		startTime:    time.Now(),
	}
}

// SetupRoutes configura as rotas da API
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.HealthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	router.POST("/submit-form", middleware.BodyLimit(h.maxBodyBytes), h.SubmitFormHandler)

	// Rotas administrativas só existem com ADMIN_TOKEN configurado
	if h.adminToken != "" {
		admin := router.Group("/admin")
		admin.Use(middleware.AdminAuth(h.adminToken, h.logger))
		{
			admin.GET("/status", h.AdminStatusHandler)
			admin.POST("/reset", h.AdminResetHandler)
			admin.GET("/receipts/:message_id", h.AdminReceiptHandler)
		}
	}

	router.NoRoute(h.NotFoundHandler)
	router.NoMethod(h.MethodNotAllowedHandler)
}

// HealthHandler implementa health check básico
func (h *Handlers) HealthHandler(c *gin.Context) {
	version := os.Getenv("APP_VERSION")
	if version == "" {
		version = "1.0.0"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"service":        serviceName,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"version":        version,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

// SubmitFormHandler recebe a submissão do formulário e a entrega ao pipeline
func (h *Handlers) SubmitFormHandler(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":   "payload_too_large",
				"message": "request body exceeds " + strconv.FormatInt(tooLarge.Limit, 10) + " bytes",
			})
			return
		}
		h.logger.WithContext(ctx).Warn("Failed to read request body", map[string]interface{}{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "unable to read request body",
			"code":    domain.CodeMalformedPayload,
		})
		return
	}

	result, err := h.pipeline.Submit(ctx, domain.InboundRequest{
		APIKey:   middleware.GetAPIKey(c),
		ClientIP: c.ClientIP(),
		Body:     body,
	})
	if err != nil {
		h.logger.WithContext(ctx).Error("Form submission failed", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_server_error",
			"message": "an unexpected error occurred",
		})
		return
	}

	if result.Rejection != nil {
		writeRejection(c, result.Rejection)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Form submitted successfully",
		"email_id": result.MessageID,
	})
}

// writeRejection traduz uma rejeição do pipeline para a resposta HTTP
func writeRejection(c *gin.Context, rejection *domain.Rejection) {
	switch rejection.Kind {
	case domain.RejectUnauthorized:
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": rejection.Detail,
		})
	case domain.RejectRateLimited:
		c.Header("Retry-After", strconv.Itoa(rejection.RetryAfter))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "rate_limit_exceeded",
			"message":     rejection.Detail,
			"retry_after": rejection.RetryAfter,
		})
	case domain.RejectInvalid:
		response := gin.H{
			"error":   "invalid_request",
			"message": rejection.Detail,
		}
		if rejection.Validation != nil {
			response["code"] = rejection.Validation.Code
			if rejection.Validation.Field != "" {
				response["field"] = rejection.Validation.Field
			}
		}
		c.JSON(http.StatusBadRequest, response)
	case domain.RejectDeliveryFailed:
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "delivery_failed",
			"message": rejection.Detail,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_server_error",
			"message": "an unexpected error occurred",
		})
	}
}

// NotFoundHandler responde rotas inexistentes
func (h *Handlers) NotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":   "not_found",
		"message": "The requested endpoint was not found",
	})
}

// MethodNotAllowedHandler responde métodos não suportados
func (h *Handlers) MethodNotAllowedHandler(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{
		"error":   "method_not_allowed",
		"message": "The requested method is not allowed for this endpoint",
	})
}

// AdminStatusHandler implementa endpoint de status administrativo
func (h *Handlers) AdminStatusHandler(c *gin.Context) {
	ctx := c.Request.Context()
	ip := strings.TrimSpace(c.Query("ip"))

	if ip == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "ip parameter is required",
		})
		return
	}

	status, err := h.limiter.Status(ctx, ip)
	if err != nil {
		h.logger.WithContext(ctx).Error("Failed to get rate limiter status", err, map[string]interface{}{
			"target_ip": ip,
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_server_error",
			"message": "Failed to retrieve rate limiter status",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ip":        status.Identity,
		"tracked":   status.Tracked,
		"windows":   status.Windows,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// AdminResetRequest representa o corpo da requisição para reset
type AdminResetRequest struct {
	IP string `json:"ip" binding:"required"`
}

// AdminResetHandler implementa endpoint de reset administrativo
func (h *Handlers) AdminResetHandler(c *gin.Context) {
	ctx := c.Request.Context()

	var req AdminResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "ip is required",
		})
		return
	}
	req.IP = strings.TrimSpace(req.IP)

	if err := h.limiter.Reset(ctx, req.IP); err != nil {
		if errors.Is(err, domain.ErrEmptyIdentity) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"message": "ip is required",
			})
			return
		}
		h.logger.WithContext(ctx).Error("Failed to reset rate limiter", err, map[string]interface{}{
			"target_ip": req.IP,
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_server_error",
			"message": "Failed to reset rate limiter",
		})
		return
	}

	h.logger.WithContext(ctx).Info("Rate limiter reset successfully", map[string]interface{}{
		"target_ip": req.IP,
	})

	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"message":   "Rate limiter reset successfully",
		"ip":        req.IP,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// AdminReceiptHandler retorna o recibo de entrega de uma mensagem
func (h *Handlers) AdminReceiptHandler(c *gin.Context) {
	ctx := c.Request.Context()
	messageID := c.Param("message_id")

	if h.receipts == nil {
		h.NotFoundHandler(c)
		return
	}

	receipt, err := h.receipts.Get(ctx, messageID)
	if err != nil {
		if errors.Is(err, domain.ErrReceiptNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "receipt not found",
			})
			return
		}
		h.logger.WithContext(ctx).Error("Failed to load receipt", err, map[string]interface{}{
			"message_id": messageID,
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_server_error",
			"message": "Failed to load receipt",
		})
		return
	}

	c.JSON(http.StatusOK, receipt)
}
