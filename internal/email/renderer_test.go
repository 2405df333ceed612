package email

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mayfly-forms/internal/clock"
	"mayfly-forms/internal/domain"
)

var renderTime = time.Date(2026, 10, 16, 14, 5, 9, 0, time.UTC)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(clock.NewFake(renderTime))
	require.NoError(t, err)
	return r
}

func newTestSubmission() *domain.FormSubmission {
	return &domain.FormSubmission{
		ToEmail:   "owner@example.com",
		FromEmail: "noreply@example.com",
		Subject:   "New Form Submission",
		SourceURL: "https://example.com/contact",
		Fields: map[string]string{
			"name":       "Jane",
			"first_name": "Jane",
			"email":      "jane@example.org",
			"company":    "",
			"message":    "Tom & Jerry",
		},
		FieldOrder: []string{"name", "first_name", "email", "company", "message"},
	}
}

func TestRenderer_Render(t *testing.T) {
	r := newTestRenderer(t)

	msg, err := r.Render(newTestSubmission())
	require.NoError(t, err)

	assert.Equal(t, "Contact Form <noreply@example.com>", msg.From)
	assert.Equal(t, "owner@example.com", msg.To)
	assert.Equal(t, "jane@example.org", msg.ReplyTo)
	assert.Equal(t, "New Form Submission", msg.Subject)

	assert.Contains(t, msg.HTML, "<strong>Jane</strong> has reached out to you through https://example.com/contact")
	assert.Contains(t, msg.HTML, "First Name:")
	assert.Contains(t, msg.HTML, "Tom &amp; Jerry")
	assert.NotContains(t, msg.HTML, "Company:")
	assert.Contains(t, msg.HTML, "Source URL:")
	assert.Contains(t, msg.HTML, "Received on October 16, 2026 at 02:05 PM UTC")

	assert.True(t, strings.HasPrefix(msg.Text, "NEW FORM SUBMISSION\n=============================="))
	assert.Contains(t, msg.Text, "First Name: Jane\n")
	assert.Contains(t, msg.Text, "Message: Tom & Jerry\n")
	assert.NotContains(t, msg.Text, "Company:")
	assert.Contains(t, msg.Text, "Submitted on: 2026-10-16 14:05:09 UTC")
}

func TestRenderer_FieldOrder(t *testing.T) {
	r := newTestRenderer(t)

	msg, err := r.Render(newTestSubmission())
	require.NoError(t, err)

	name := strings.Index(msg.Text, "Name: Jane")
	first := strings.Index(msg.Text, "First Name: Jane")
	message := strings.Index(msg.Text, "Message:")
	require.True(t, name >= 0 && first >= 0 && message >= 0)
	assert.Less(t, name, first)
	assert.Less(t, first, message)
}

func TestRenderer_Defaults(t *testing.T) {
	r := newTestRenderer(t)

	msg, err := r.Render(&domain.FormSubmission{
		ToEmail:    "owner@example.com",
		FromEmail:  "noreply@example.com",
		Subject:    "Hi",
		Fields:     map[string]string{"phone": "123"},
		FieldOrder: []string{"phone"},
	})
	require.NoError(t, err)

	assert.Contains(t, msg.HTML, "<strong>A potential customer</strong> has reached out to you through your website")
	assert.NotContains(t, msg.HTML, "Source URL:")
	assert.Empty(t, msg.ReplyTo)
}

func TestReplyTo(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		expected string
	}{
		{name: "Should use plain address", email: "jane@example.org", expected: "jane@example.org"},
		{name: "Should ignore missing address", email: "", expected: ""},
		{name: "Should ignore value without at sign", email: "jane", expected: ""},
		{name: "Should ignore display name form", email: "Jane <jane@example.org>", expected: ""},
		{name: "Should ignore multiple addresses", email: "a@b.com, c@d.com", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &domain.FormSubmission{Fields: map[string]string{"email": tt.email}}
			assert.Equal(t, tt.expected, replyTo(sub))
		})
	}
}
