package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"mayfly-forms/internal/domain"

	"github.com/sirupsen/logrus"
)

// StructuredLogger implementa a interface domain.Logger
type StructuredLogger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// contextKey define chaves para contexto
type contextKey string

const (
	RequestIDKey      contextKey = "request_id"
	IPKey             contextKey = "ip"
	KeyFingerprintKey contextKey = "key_fingerprint"
	UserAgentKey      contextKey = "user_agent"
)

// NewLogger cria uma nova instância do logger estruturado
func NewLogger(level, format string) domain.Logger {
	return NewLoggerWithOutput(level, format, os.Stdout)
}

// NewLoggerWithOutput cria o logger escrevendo em out
func NewLoggerWithOutput(level, format string, out io.Writer) domain.Logger {
	logger := logrus.New()

	// Configura o nível de log
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Configura o formato de saída
	switch strings.ToLower(format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
				logrus.FieldKeyFunc:  "function",
			},
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	logger.SetOutput(out)

	return &StructuredLogger{
		logger: logger,
		fields: make(logrus.Fields),
	}
}

// Debug registra uma mensagem de debug
func (l *StructuredLogger) Debug(msg string, fields map[string]interface{}) {
	l.logWithFields(logrus.DebugLevel, msg, fields)
}

// Info registra uma mensagem informativa
func (l *StructuredLogger) Info(msg string, fields map[string]interface{}) {
	l.logWithFields(logrus.InfoLevel, msg, fields)
}

// Warn registra uma mensagem de warning
func (l *StructuredLogger) Warn(msg string, fields map[string]interface{}) {
	l.logWithFields(logrus.WarnLevel, msg, fields)
}

// Error registra uma mensagem de erro
func (l *StructuredLogger) Error(msg string, err error, fields map[string]interface{}) {
	merged := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	if err != nil {
		merged["error"] = err.Error()
	}
	l.logWithFields(logrus.ErrorLevel, msg, merged)
}

// WithContext cria um novo logger com contexto da requisição
func (l *StructuredLogger) WithContext(ctx context.Context) domain.Logger {
	contextFields := l.extractContextFields(ctx)

	mergedFields := make(logrus.Fields, len(l.fields)+len(contextFields))
	for k, v := range l.fields {
		mergedFields[k] = v
	}
	for k, v := range contextFields {
		mergedFields[k] = v
	}

	return &StructuredLogger{
		logger: l.logger,
		fields: mergedFields,
	}
}

// logWithFields registra uma mensagem com campos específicos
func (l *StructuredLogger) logWithFields(level logrus.Level, msg string, fields map[string]interface{}) {
	if !l.logger.IsLevelEnabled(level) {
		return
	}

	allFields := make(logrus.Fields, len(l.fields)+len(fields)+2)
	for k, v := range l.fields {
		allFields[k] = v
	}
	for k, v := range fields {
		allFields[k] = v
	}

	l.addServiceFields(allFields)

	l.logger.WithFields(allFields).Log(level, msg)
}

// extractContextFields extrai campos relevantes do contexto
func (l *StructuredLogger) extractContextFields(ctx context.Context) logrus.Fields {
	fields := make(logrus.Fields)

	if ctx == nil {
		return fields
	}

	if requestID := ctx.Value(RequestIDKey); requestID != nil {
		fields["request_id"] = requestID
	}

	if ip := ctx.Value(IPKey); ip != nil {
		fields["ip"] = ip
	}

	// Apenas o fingerprint da chave, nunca a chave
	if fp, ok := ctx.Value(KeyFingerprintKey).(string); ok && fp != "" {
		fields["key_fingerprint"] = fp
	}

	if userAgent := ctx.Value(UserAgentKey); userAgent != nil {
		fields["user_agent"] = userAgent
	}

	return fields
}

// addServiceFields adiciona campos fixos do serviço
func (l *StructuredLogger) addServiceFields(fields logrus.Fields) {
	fields["component"] = "mayfly_forms"

	if version := os.Getenv("APP_VERSION"); version != "" {
		fields["version"] = version
	}
}

// ContextWithRequestInfo adiciona informações da requisição ao contexto
func ContextWithRequestInfo(ctx context.Context, requestID, ip, keyFingerprint, userAgent string) context.Context {
	ctx = context.WithValue(ctx, RequestIDKey, requestID)
	ctx = context.WithValue(ctx, IPKey, ip)
	if keyFingerprint != "" {
		ctx = context.WithValue(ctx, KeyFingerprintKey, keyFingerprint)
	}
	ctx = context.WithValue(ctx, UserAgentKey, userAgent)
	return ctx
}

// GetRequestID extrai o request ID do contexto
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if requestID := ctx.Value(RequestIDKey); requestID != nil {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// RedactEmail mascara um email para logs.
// "john.doe@example.com" → "jo***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// Nop retorna um logger que descarta tudo
func Nop() domain.Logger {
	return NewLoggerWithOutput("panic", "text", io.Discard)
}
