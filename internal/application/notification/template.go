package notification

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// DefaultTemplate is used unless an override is loaded at startup.
const DefaultTemplate = `{{define "subject"}}Your verification code is: {{.Code}}{{end}}
{{define "body"}}Hi {{.Name}},

Enter your code: {{.Code}}

This code expires in {{.ValidMinutes}} minutes. If you did not try to sign in, you can ignore this email.

{{.Sender}}
{{end}}`

// MessageData is the template input.
type MessageData struct {
	Name         string
	Email        string
	Code         string
	ValidMinutes int
	Sender       string
}

// Templates renders the subject and body of the verification email.
type Templates struct {
	t *template.Template
}

// ParseTemplates parses src, which must define "subject" and "body".
func ParseTemplates(src string) (*Templates, error) {
	t, err := template.New("otp").Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse mail template: %w", err)
	}
	for _, name := range []string{"subject", "body"} {
		if t.Lookup(name) == nil {
			return nil, fmt.Errorf("mail template has no %q block", name)
		}
	}
	return &Templates{t: t}, nil
}

// MustDefaultTemplates parses DefaultTemplate.
func MustDefaultTemplates() *Templates {
	t, err := ParseTemplates(DefaultTemplate)
	if err != nil {
		panic(err)
	}
	return t
}

// Render returns subject and body for data.
func (t *Templates) Render(data MessageData) (string, string, error) {
	var subject, body bytes.Buffer
	if err := t.t.ExecuteTemplate(&subject, "subject", data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := t.t.ExecuteTemplate(&body, "body", data); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	s := strings.TrimSpace(subject.String())
	if strings.ContainsAny(s, "\r\n") {
		return "", "", errors.New("rendered subject spans multiple lines")
	}
	return s, body.String(), nil
}
