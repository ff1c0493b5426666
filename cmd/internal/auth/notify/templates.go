package notify

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

type templateName string

const (
	tmplPasswordReset templateName = "password-reset"
	tmplAccountLocked templateName = "account-lockout"
)

var subjects = map[templateName]string{
	tmplPasswordReset: "Reset your password",
	tmplAccountLocked: "Your account was locked for security",
}

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt"))
)

func render(name templateName, to string, data map[string]any) (Message, error) {
	var html, text bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, string(name)+".html", data); err != nil {
		return Message{}, err
	}
	if err := textTemplates.ExecuteTemplate(&text, string(name)+".txt", data); err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: subjects[name],
		HTML:    html.String(),
		Text:    strings.TrimSpace(text.String()) + "\n",
	}, nil
}
