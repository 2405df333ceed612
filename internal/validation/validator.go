// Package validation converte o corpo bruto de uma submissão em uma FormSubmission
// validada e sanitizada.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"mayfly-forms/internal/domain"
)

const (
	DefaultSubject             = "New Form Submission"
	DefaultSender              = "noreply@example.com"
	DefaultMaxFields           = 50
	DefaultMaxFieldNameLength  = 100
	DefaultMaxFieldValueLength = 5000
	DefaultMaxSubjectLength    = 200

	maxEmailLength   = 254
	maxExcerptLength = 40
)

var (
	emailShape = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

	// Padrões estruturais de markup/script: sempre rejeitados, nunca removidos
	suspiciousPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)</?[a-z][a-z0-9-]*(\s[^>]*)?/?>`),
		regexp.MustCompile(`(?i)<\s*(script|iframe|object|embed|svg|img|style|link|meta|base|form|frame)\b`),
		regexp.MustCompile(`<!--`),
		regexp.MustCompile(`(?i)\b(javascript|vbscript|livescript)\s*:`),
		regexp.MustCompile(`(?i)\bdata\s*:\s*text/html`),
		regexp.MustCompile(`(?i)\bon[a-z]+\s*=`),
		regexp.MustCompile(`(?i)\beval\s*\(`),
		regexp.MustCompile(`(?i)\bdocument\.[a-z]`),
		regexp.MustCompile(`(?i)\bwindow\.[a-z]`),
	}
)

// Options define os limites e defaults do validador
type Options struct {
	DefaultSender       string
	DefaultSubject      string
	MaxFields           int
	MaxFieldNameLength  int
	MaxFieldValueLength int
	MaxSubjectLength    int
}

// FormValidator implementa domain.Validator. Não guarda estado entre chamadas.
type FormValidator struct {
	opts     Options
	validate *validator.Validate
}

// NewFormValidator cria o validador; zeros em opts assumem os defaults
func NewFormValidator(opts Options) *FormValidator {
	if opts.DefaultSender == "" {
		opts.DefaultSender = DefaultSender
	}
	if opts.DefaultSubject == "" {
		opts.DefaultSubject = DefaultSubject
	}
	if opts.MaxFields <= 0 {
		opts.MaxFields = DefaultMaxFields
	}
	if opts.MaxFieldNameLength <= 0 {
		opts.MaxFieldNameLength = DefaultMaxFieldNameLength
	}
	if opts.MaxFieldValueLength <= 0 {
		opts.MaxFieldValueLength = DefaultMaxFieldValueLength
	}
	if opts.MaxSubjectLength <= 0 {
		opts.MaxSubjectLength = DefaultMaxSubjectLength
	}

	return &FormValidator{
		opts:     opts,
		validate: validator.New(),
	}
}

// Validate aplica as regras em ordem e retorna a primeira falha
func (v *FormValidator) Validate(raw []byte) (*domain.FormSubmission, *domain.ValidationError) {
	// 1. objeto JSON
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, newError(domain.CodeMalformedPayload, "", "request body must be a JSON object")
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &top); err != nil {
		return nil, newError(domain.CodeMalformedPayload, "", "request body must be a JSON object")
	}

	// 2. destinatário
	toEmail, ok := decodeString(top["to_email"])
	if !ok || !v.isEmail(toEmail) {
		return nil, newError(domain.CodeMissingOrInvalidRecipient, "to_email", "to_email is required and must be a valid email address")
	}
	toEmail = strings.TrimSpace(toEmail)

	// 3. fields
	fields, verr := v.decodeFields(top["fields"])
	if verr != nil {
		return nil, verr
	}

	fromEmail, hasFrom, fromIsString := optionalString(top["from_email"])
	sourceURL, hasSource, sourceIsString := optionalString(top["source_url"])
	subject, hasSubject, subjectIsString := optionalString(top["subject"])

	// 4. conteúdo suspeito e sanitização
	sanitized := make(map[string]string, len(fields))
	order := make([]string, 0, len(fields))
	for _, f := range fields {
		name, err := v.sanitize(f.Name)
		if err != nil {
			return nil, newError(domain.CodeSuspiciousContent, "fields", "field name contains disallowed content")
		}
		value, err := v.sanitize(f.Value)
		if err != nil {
			return nil, newError(domain.CodeSuspiciousContent, excerpt(name), "field value contains disallowed content")
		}
		if name == "" {
			return nil, newError(domain.CodeInvalidField, "fields", "field names must not be empty")
		}
		if _, exists := sanitized[name]; exists {
			return nil, newError(domain.CodeInvalidField, excerpt(name), "duplicate field name")
		}
		order = append(order, name)
		sanitized[name] = value
	}

	type optional struct {
		name  string
		value *string
		check bool
	}
	for _, o := range []optional{
		{name: "subject", value: &subject, check: hasSubject && subjectIsString},
		{name: "source_url", value: &sourceURL, check: hasSource && sourceIsString},
		{name: "from_email", value: &fromEmail, check: hasFrom && fromIsString},
	} {
		if !o.check {
			continue
		}
		clean, err := v.sanitize(*o.value)
		if err != nil {
			return nil, newError(domain.CodeSuspiciousContent, o.name, o.name+" contains disallowed content")
		}
		*o.value = clean
	}

	// 5. campos opcionais malformados
	if hasFrom {
		if !fromIsString || (fromEmail != "" && !v.isEmail(fromEmail)) {
			return nil, newError(domain.CodeInvalidSender, "from_email", "from_email must be a valid email address")
		}
	}
	if hasSource {
		if !sourceIsString || (sourceURL != "" && !v.isHTTPURL(sourceURL)) {
			return nil, newError(domain.CodeInvalidSourceURL, "source_url", "source_url must be an absolute http(s) URL")
		}
	}
	if hasSubject && !subjectIsString {
		return nil, newError(domain.CodeInvalidSubject, "subject", "subject must be a string")
	}
	// subject vira um cabeçalho de linha única
	if strings.ContainsAny(subject, "\r\n") {
		return nil, newError(domain.CodeInvalidSubject, "subject", "subject must be a single line")
	}

	// 6. limites de tamanho
	for _, name := range order {
		if utf8.RuneCountInString(name) > v.opts.MaxFieldNameLength {
			return nil, newError(domain.CodeFieldTooLong, excerpt(name),
				fmt.Sprintf("field name exceeds %d characters", v.opts.MaxFieldNameLength))
		}
		if utf8.RuneCountInString(sanitized[name]) > v.opts.MaxFieldValueLength {
			return nil, newError(domain.CodeFieldTooLong, excerpt(name),
				fmt.Sprintf("field value exceeds %d characters", v.opts.MaxFieldValueLength))
		}
	}
	if utf8.RuneCountInString(subject) > v.opts.MaxSubjectLength {
		return nil, newError(domain.CodeFieldTooLong, "subject",
			fmt.Sprintf("subject exceeds %d characters", v.opts.MaxSubjectLength))
	}

	if fromEmail == "" {
		fromEmail = v.opts.DefaultSender
	}
	if subject == "" {
		subject = v.opts.DefaultSubject
	}

	return &domain.FormSubmission{
		ToEmail:    toEmail,
		FromEmail:  fromEmail,
		Subject:    subject,
		SourceURL:  sourceURL,
		Fields:     sanitized,
		FieldOrder: order,
	}, nil
}

// decodeFields lê o objeto "fields" preservando a ordem das chaves
func (v *FormValidator) decodeFields(raw json.RawMessage) ([]domain.Field, *domain.ValidationError) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, newError(domain.CodeEmptyFields, "fields", "fields is required and must be a non-empty object")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if _, err := dec.Token(); err != nil {
		return nil, newError(domain.CodeEmptyFields, "fields", "fields is required and must be a non-empty object")
	}

	var fields []domain.Field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, newError(domain.CodeMalformedPayload, "fields", "fields is not valid JSON")
		}
		name, _ := tok.(string)

		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return nil, newError(domain.CodeMalformedPayload, "fields", "fields is not valid JSON")
		}

		text, ok := scalarText(value)
		if !ok {
			return nil, newError(domain.CodeInvalidField, excerpt(name), "field values must be strings, numbers or booleans")
		}

		fields = append(fields, domain.Field{Name: name, Value: text})
		if len(fields) > v.opts.MaxFields {
			return nil, newError(domain.CodeFieldTooLong, "fields",
				fmt.Sprintf("fields must not have more than %d entries", v.opts.MaxFields))
		}
	}

	if len(fields) == 0 {
		return nil, newError(domain.CodeEmptyFields, "fields", "fields is required and must be a non-empty object")
	}
	return fields, nil
}

// sanitize rejeita padrões estruturais e remove caracteres de controle fora de \t\n\r
func (v *FormValidator) sanitize(s string) (string, error) {
	if strings.ContainsRune(s, 0) {
		return "", errSuspicious
	}

	clean := strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, s)

	for _, pattern := range suspiciousPatterns {
		if pattern.MatchString(clean) {
			return "", errSuspicious
		}
	}

	return strings.TrimSpace(clean), nil
}

func (v *FormValidator) isEmail(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return false
		}
	}
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxEmailLength || !emailShape.MatchString(s) {
		return false
	}
	return v.validate.Var(s, "email") == nil
}

func (v *FormValidator) isHTTPURL(s string) bool {
	if v.validate.Var(s, "url") != nil {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

var errSuspicious = fmt.Errorf("suspicious content")

func newError(code domain.ValidationCode, field, message string) *domain.ValidationError {
	return &domain.ValidationError{Code: code, Field: field, Message: message}
}

// decodeString lê um valor JSON que precisa ser string
func decodeString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// optionalString trata ausência, null e string vazia como campo não informado
func optionalString(raw json.RawMessage) (value string, present bool, isString bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false, false
	}
	s, ok := decodeString(trimmed)
	if !ok {
		return "", true, false
	}
	if strings.TrimSpace(s) == "" {
		return "", false, false
	}
	return s, true, true
}

func scalarText(value interface{}) (string, bool) {
	switch val := value.(type) {
	case nil:
		return "", true
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool:
		if val {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}

// excerpt devolve uma versão imprimível e truncada do nome do campo, segura para ecoar ao cliente
func excerpt(name string) string {
	var b strings.Builder
	count := 0
	for _, r := range name {
		if count >= maxExcerptLength {
			b.WriteString("...")
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.' || r == ' ' {
			b.WriteRune(r)
			count++
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "fields"
	}
	return out
}
