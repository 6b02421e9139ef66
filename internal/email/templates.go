package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title   string
	Heading string
}

type dealStatusEmailData struct {
	baseEmailData
	ClientName string
	LoanType   string
	OldStatus  string
	NewStatus  string
}

type callbackReminderEmailData struct {
	baseEmailData
	RecipientName string
	CallbackTitle string
	ScheduledAt   string
	TimeUntil     string
}

type notificationEmailData struct {
	baseEmailData
	Message string
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

// statusLabel turns a snake_case deal status into a title-cased label,
// e.g. "in_progress" -> "In Progress".
func statusLabel(status string) string {
	words := strings.Split(strings.TrimSpace(status), "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
