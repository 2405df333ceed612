// Package email entrega submissões validadas aos provedores de email.
package email

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/osteele/liquid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mayfly-forms/internal/domain"
)

const senderName = "Contact Form"

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>New Customer Inquiry</title>
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; line-height: 1.6; color: #333; background-color: #f8f9fa; }
        .container { max-width: 600px; margin: 0 auto; background-color: white; }
        .header { background: linear-gradient(135deg, #4a4a4a 0%, #2c2c2c 100%); color: white; padding: 30px 20px; text-align: center; }
        .content { padding: 30px; }
        .intro { font-size: 16px; margin-bottom: 25px; color: #555; }
        .details { background-color: #f8f9fa; padding: 20px; border-radius: 8px; margin: 20px 0; }
        .field { margin-bottom: 15px; }
        .field-label { font-weight: 600; color: #333; font-size: 14px; text-transform: uppercase; letter-spacing: 0.5px; }
        .field-value { margin-top: 5px; font-size: 16px; color: #555; padding: 8px 0; border-bottom: 1px solid #e9ecef; white-space: pre-wrap; }
        .footer { background-color: #f8f9fa; padding: 20px; text-align: center; font-size: 14px; color: #6c757d; }
        .timestamp { font-style: italic; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1 style="margin: 0; font-weight: 300;">New Form Submission</h1>
        </div>
        <div class="content">
            <div class="intro">
                <strong>{{ customer_name | escape }}</strong> has reached out to you through {{ source | escape }}. Here are the details of their form submission:
            </div>
            <div class="details">
{% for field in fields %}
                <div class="field">
                    <div class="field-label">{{ field.label | escape }}:</div>
                    <div class="field-value">{{ field.value | escape }}</div>
                </div>
{% endfor %}
{% if source_url != "" %}
                <div class="field">
                    <div class="field-label">Source URL:</div>
                    <div class="field-value">{{ source_url | escape }}</div>
                </div>
{% endif %}
            </div>
        </div>
        <div class="footer">
            <div class="timestamp">Received on {{ received_at }}</div>
            <div style="margin-top: 10px;">
                <em>This inquiry was sent through your website contact form.</em>
            </div>
        </div>
    </div>
</body>
</html>
`

const textTemplate = `NEW FORM SUBMISSION
==============================

{% for field in fields %}{{ field.label }}: {{ field.value }}
{% endfor %}
Submitted on: {{ submitted_at }}`

// Message é o email pronto para ser enviado por qualquer provedor
type Message struct {
	From    string
	To      string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
}

// Renderer monta o corpo HTML e texto a partir de templates liquid
type Renderer struct {
	html  *liquid.Template
	text  *liquid.Template
	clock domain.Clock
}

// NewRenderer compila os templates
func NewRenderer(clock domain.Clock) (*Renderer, error) {
	engine := liquid.NewEngine()

	html, err := engine.ParseString(htmlTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse html template: %w", err)
	}
	text, err := engine.ParseString(textTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse text template: %w", err)
	}

	return &Renderer{
		html:  html,
		text:  text,
		clock: clock,
	}, nil
}

// Render produz a mensagem completa de uma submissão validada
func (r *Renderer) Render(sub *domain.FormSubmission) (*Message, error) {
	now := r.clock.Now().UTC()

	fields := make([]map[string]interface{}, 0, len(sub.Fields))
	for _, f := range sub.OrderedFields() {
		if f.Value == "" {
			continue
		}
		fields = append(fields, map[string]interface{}{
			"label": r.label(f.Name),
			"value": f.Value,
		})
	}

	customerName := sub.Fields["name"]
	if customerName == "" {
		customerName = "A potential customer"
	}
	source := sub.SourceURL
	if source == "" {
		source = "your website"
	}

	bindings := map[string]interface{}{
		"customer_name": customerName,
		"source":        source,
		"source_url":    sub.SourceURL,
		"fields":        fields,
		"received_at":   now.Format("January 02, 2006 at 03:04 PM UTC"),
		"submitted_at":  now.Format("2006-01-02 15:04:05 UTC"),
	}

	html, err := r.html.RenderString(bindings)
	if err != nil {
		return nil, fmt.Errorf("render html body: %w", err)
	}
	text, err := r.text.RenderString(bindings)
	if err != nil {
		return nil, fmt.Errorf("render text body: %w", err)
	}

	return &Message{
		From:    fmt.Sprintf("%s <%s>", senderName, sub.FromEmail),
		To:      sub.ToEmail,
		ReplyTo: replyTo(sub),
		Subject: sub.Subject,
		HTML:    html,
		Text:    text,
	}, nil
}

// label converte "first_name" em "First Name"; um Caser não pode ser compartilhado entre goroutines
func (r *Renderer) label(name string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(name, "_", " "))
}

// replyTo usa fields.email quando ele é um endereço simples
func replyTo(sub *domain.FormSubmission) string {
	candidate := strings.TrimSpace(sub.Fields["email"])
	if candidate == "" || !strings.Contains(candidate, "@") {
		return ""
	}
	addr, err := mail.ParseAddress(candidate)
	if err != nil || addr.Address != candidate {
		return ""
	}
	return candidate
}
