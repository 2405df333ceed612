package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"mayfly-forms/internal/auth"
	"mayfly-forms/internal/domain"
	"mayfly-forms/internal/email"
	"mayfly-forms/internal/validation"
)

// Config representa todas as configurações da aplicação
type Config struct {
	// Authentication
	APIKeys    []string
	AdminToken string

	// Rate Limiting Configuration
	Windows         []domain.RateWindow
	CleanupInterval time.Duration

	// Email Configuration
	EmailProvider      string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	DefaultSender      string
	DefaultSubject     string
	MailgunAPIKey      string
	MailgunDomain      string
	MailgunBaseURL     string
	SendTimeout        time.Duration
	SendRate           float64
	SendBurst          int

	// Validation limits
	MaxBodyBytes        int64
	MaxFields           int
	MaxFieldNameLength  int
	MaxFieldValueLength int
	MaxSubjectLength    int

	// Receipt store
	ReceiptStore string
	ReceiptTTL   time.Duration

	// Redis Configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Server Configuration
	ServerPort         string
	GinMode            string
	TrustedProxies     []string
	CORSAllowedOrigins []string

	// Logging Configuration
	LogLevel  string
	LogFormat string

	// Optional YAML file
	ConfigFile string
}

// FileConfig é a estrutura do arquivo YAML opcional
type FileConfig struct {
	APIKeys    []string     `yaml:"api_keys"`
	RateLimits []FileWindow `yaml:"rate_limits"`
}

// FileWindow descreve uma janela no arquivo YAML
type FileWindow struct {
	Name          string `yaml:"name"`
	Limit         int    `yaml:"limit"`
	WindowSeconds int    `yaml:"window_seconds"`
}

// windowEnv liga cada janela padrão às suas variáveis de ambiente
var windowEnv = []struct {
	name     string
	limitKey string
	sizeKey  string
	limit    int
	size     time.Duration
}{
	{name: "minute", limitKey: "RATE_LIMIT_PER_MINUTE", sizeKey: "RATE_WINDOW_MINUTE", limit: 10, size: time.Minute},
	{name: "hour", limitKey: "RATE_LIMIT_PER_HOUR", sizeKey: "RATE_WINDOW_HOUR", limit: 100, size: time.Hour},
	{name: "day", limitKey: "RATE_LIMIT_PER_DAY", sizeKey: "RATE_WINDOW_DAY", limit: 1000, size: 24 * time.Hour},
}

// ConfigLoader carrega e valida a configuração
type ConfigLoader struct {
	config *Config
}

// NewConfigLoader cria uma nova instância do ConfigLoader
func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

// LoadConfig carrega as configurações do .env, do ambiente e do arquivo YAML opcional
func (c *ConfigLoader) LoadConfig() (*Config, error) {
	// Carrega o arquivo .env se existir
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using system environment variables")
	}

	config, err := c.loadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	c.config = config
	return config, nil
}

// Reload recarrega todas as configurações
func (c *ConfigLoader) Reload() error {
	_, err := c.LoadConfig()
	return err
}

// GetConfig retorna a configuração atual
func (c *ConfigLoader) GetConfig() *Config {
	return c.config
}

// EmailSettings monta as opções do dispatcher
func (c *Config) EmailSettings() email.Settings {
	return email.Settings{
		Provider:           c.EmailProvider,
		AWSRegion:          c.AWSRegion,
		AWSAccessKeyID:     c.AWSAccessKeyID,
		AWSSecretAccessKey: c.AWSSecretAccessKey,
		MailgunAPIKey:      c.MailgunAPIKey,
		MailgunDomain:      c.MailgunDomain,
		MailgunBaseURL:     c.MailgunBaseURL,
		SendRate:           c.SendRate,
		SendBurst:          c.SendBurst,
	}
}

// ValidatorOptions monta os limites do validador
func (c *Config) ValidatorOptions() validation.Options {
	return validation.Options{
		DefaultSender:       c.DefaultSender,
		DefaultSubject:      c.DefaultSubject,
		MaxFields:           c.MaxFields,
		MaxFieldNameLength:  c.MaxFieldNameLength,
		MaxFieldValueLength: c.MaxFieldValueLength,
		MaxSubjectLength:    c.MaxSubjectLength,
	}
}

// loadFromEnv carrega configurações das variáveis de ambiente
func (c *ConfigLoader) loadFromEnv() (*Config, error) {
	config := &Config{
		AdminToken: os.Getenv("ADMIN_TOKEN"),

		EmailProvider:      strings.ToLower(getEnvWithDefault("EMAIL_PROVIDER", email.ProviderSES)),
		AWSRegion:          getEnvWithDefault("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		DefaultSender:      getEnvWithDefault("SES_DEFAULT_SENDER", validation.DefaultSender),
		DefaultSubject:     getEnvWithDefault("DEFAULT_SUBJECT", validation.DefaultSubject),
		MailgunAPIKey:      os.Getenv("MAILGUN_API_KEY"),
		MailgunDomain:      os.Getenv("MAILGUN_DOMAIN"),
		MailgunBaseURL:     getEnvWithDefault("MAILGUN_BASE_URL", email.DefaultMailgunBaseURL),

		ReceiptStore: strings.ToLower(getEnvWithDefault("RECEIPT_STORE", "memory")),

		// Redis defaults
		RedisHost:     getEnvWithDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvWithDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvWithDefault("REDIS_PASSWORD", ""),

		// Server defaults
		ServerPort:         getEnvWithDefault("SERVER_PORT", "8080"),
		GinMode:            getEnvWithDefault("GIN_MODE", "debug"),
		TrustedProxies:     splitList(os.Getenv("TRUSTED_PROXIES")),
		CORSAllowedOrigins: splitList(getEnvWithDefault("CORS_ALLOWED_ORIGINS", "*")),

		// Logging defaults
		LogLevel:  getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvWithDefault("LOG_FORMAT", "json"),

		ConfigFile: os.Getenv("CONFIG_FILE"),
	}

	var file *FileConfig
	if config.ConfigFile != "" {
		loaded, err := LoadFile(config.ConfigFile)
		if err != nil {
			return nil, err
		}
		file = loaded
	}

	// Variável de ambiente tem precedência sobre o arquivo
	config.APIKeys = splitList(os.Getenv("VALID_API_KEYS"))
	if len(config.APIKeys) == 0 && file != nil {
		config.APIKeys = normalizeKeys(file.APIKeys)
	}

	windows, err := loadWindows(file)
	if err != nil {
		return nil, err
	}
	config.Windows = windows

	ints := []struct {
		key    string
		def    string
		target *int
	}{
		{"REDIS_DB", "0", &config.RedisDB},
		{"EMAIL_SEND_BURST", "14", &config.SendBurst},
		{"MAX_FIELDS", strconv.Itoa(validation.DefaultMaxFields), &config.MaxFields},
		{"MAX_FIELD_NAME_LENGTH", strconv.Itoa(validation.DefaultMaxFieldNameLength), &config.MaxFieldNameLength},
		{"MAX_FIELD_VALUE_LENGTH", strconv.Itoa(validation.DefaultMaxFieldValueLength), &config.MaxFieldValueLength},
		{"MAX_SUBJECT_LENGTH", strconv.Itoa(validation.DefaultMaxSubjectLength), &config.MaxSubjectLength},
	}
	for _, item := range ints {
		value, err := strconv.Atoi(getEnvWithDefault(item.key, item.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s value: %w", item.key, err)
		}
		*item.target = value
	}

	durations := []struct {
		key    string
		def    string
		target *time.Duration
	}{
		{"LIMITER_CLEANUP_INTERVAL", "300", &config.CleanupInterval},
		{"EMAIL_SEND_TIMEOUT", "10", &config.SendTimeout},
		{"RECEIPT_TTL", "604800", &config.ReceiptTTL},
	}
	for _, item := range durations {
		value, err := getSecondsEnv(item.key, item.def)
		if err != nil {
			return nil, err
		}
		*item.target = value
	}

	sendRate, err := strconv.ParseFloat(getEnvWithDefault("EMAIL_SEND_RATE", "14"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid EMAIL_SEND_RATE value: %w", err)
	}
	config.SendRate = sendRate

	maxBody, err := strconv.ParseInt(getEnvWithDefault("MAX_BODY_BYTES", "65536"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_BODY_BYTES value: %w", err)
	}
	config.MaxBodyBytes = maxBody

	return config, nil
}

// LoadFile lê o arquivo YAML de configuração; campos desconhecidos são erro
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var file FileConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &file, nil
}

// loadWindows combina padrões, arquivo e ambiente, nesta ordem de precedência crescente
func loadWindows(file *FileConfig) ([]domain.RateWindow, error) {
	var windows []domain.RateWindow
	if file != nil && len(file.RateLimits) > 0 {
		for _, w := range file.RateLimits {
			windows = append(windows, domain.RateWindow{
				Name:  strings.TrimSpace(w.Name),
				Limit: w.Limit,
				Size:  time.Duration(w.WindowSeconds) * time.Second,
			})
		}
	} else {
		for _, def := range windowEnv {
			windows = append(windows, domain.RateWindow{Name: def.name, Limit: def.limit, Size: def.size})
		}
	}

	for _, def := range windowEnv {
		limitValue, hasLimit := os.LookupEnv(def.limitKey)
		sizeValue, hasSize := os.LookupEnv(def.sizeKey)
		if !hasLimit && !hasSize {
			continue
		}

		idx := indexOfWindow(windows, def.name)
		if idx < 0 {
			windows = append(windows, domain.RateWindow{Name: def.name, Limit: def.limit, Size: def.size})
			idx = len(windows) - 1
		}

		if hasLimit {
			limit, err := strconv.Atoi(limitValue)
			if err != nil {
				return nil, fmt.Errorf("invalid %s value: %w", def.limitKey, err)
			}
			windows[idx].Limit = limit
		}
		if hasSize {
			seconds, err := strconv.Atoi(sizeValue)
			if err != nil {
				return nil, fmt.Errorf("invalid %s value: %w", def.sizeKey, err)
			}
			windows[idx].Size = time.Duration(seconds) * time.Second
		}
	}

	return windows, nil
}

// ValidateConfig valida se as configurações são válidas
func ValidateConfig(config *Config) error {
	if len(config.APIKeys) == 0 {
		return domain.ErrEmptyKeySet
	}
	for i, key := range config.APIKeys {
		if len(key) < auth.MinKeyLength {
			return fmt.Errorf("API key #%d must have at least %d characters", i+1, auth.MinKeyLength)
		}
	}

	if len(config.Windows) == 0 {
		return domain.ErrNoWindows
	}
	seen := make(map[string]bool, len(config.Windows))
	for _, w := range config.Windows {
		if w.Name == "" {
			return fmt.Errorf("rate window name is required")
		}
		if seen[w.Name] {
			return fmt.Errorf("duplicate rate window %q", w.Name)
		}
		seen[w.Name] = true
		if w.Limit <= 0 {
			return fmt.Errorf("rate limit for window %q must be greater than 0", w.Name)
		}
		if w.Size <= 0 {
			return fmt.Errorf("size of window %q must be greater than 0", w.Name)
		}
	}

	if config.CleanupInterval <= 0 {
		return fmt.Errorf("LIMITER_CLEANUP_INTERVAL must be greater than 0")
	}

	if err := validateProvider(config); err != nil {
		return err
	}

	if config.SendTimeout <= 0 {
		return fmt.Errorf("EMAIL_SEND_TIMEOUT must be greater than 0")
	}
	if config.SendRate < 0 {
		return fmt.Errorf("EMAIL_SEND_RATE must not be negative")
	}

	if config.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be greater than 0")
	}
	if config.MaxFields <= 0 || config.MaxFieldNameLength <= 0 || config.MaxFieldValueLength <= 0 || config.MaxSubjectLength <= 0 {
		return fmt.Errorf("field limits must be greater than 0")
	}

	if config.AdminToken != "" && len(config.AdminToken) < auth.MinKeyLength {
		return fmt.Errorf("ADMIN_TOKEN must have at least %d characters", auth.MinKeyLength)
	}

	if config.ReceiptStore != "memory" && config.ReceiptStore != "redis" {
		return fmt.Errorf("unsupported RECEIPT_STORE %q", config.ReceiptStore)
	}
	if config.ReceiptTTL <= 0 {
		return fmt.Errorf("RECEIPT_TTL must be greater than 0")
	}

	if config.RedisDB < 0 || config.RedisDB > 15 {
		return fmt.Errorf("REDIS_DB must be between 0 and 15")
	}

	return nil
}

func validateProvider(config *Config) error {
	switch config.EmailProvider {
	case email.ProviderSES:
		if config.AWSRegion == "" {
			return fmt.Errorf("AWS_REGION is required for the ses provider")
		}
	case email.ProviderMailgun:
		if config.MailgunAPIKey == "" || config.MailgunDomain == "" {
			return fmt.Errorf("MAILGUN_API_KEY and MAILGUN_DOMAIN are required for the mailgun provider")
		}
	case email.ProviderLog:
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownProvider, config.EmailProvider)
	}
	return nil
}

func indexOfWindow(windows []domain.RateWindow, name string) int {
	for i := range windows {
		if windows[i].Name == name {
			return i
		}
	}
	return -1
}

// splitList separa uma lista por vírgulas descartando itens vazios
func splitList(value string) []string {
	var items []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

func normalizeKeys(keys []string) []string {
	var out []string
	for _, key := range keys {
		if key = strings.TrimSpace(key); key != "" {
			out = append(out, key)
		}
	}
	return out
}

// getSecondsEnv lê uma duração expressa em segundos inteiros
func getSecondsEnv(key, defaultValue string) (time.Duration, error) {
	seconds, err := strconv.Atoi(getEnvWithDefault(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return time.Duration(seconds) * time.Second, nil
}

// getEnvWithDefault retorna o valor da variável de ambiente ou um valor padrão
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
