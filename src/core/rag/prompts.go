package rag

import (
	"bytes"
	"fmt"
	"text/template"
)

const (
	AnswerPromptTmpl = `
You are a helpful assistant.
Context:
{{.Context}}
Conversation so far:
{{range .History}}User: {{.Query}}
Assistant: {{.Answer}}
{{end}}User: {{.Query}}
Answer helpfully based on context.
`
	BookingPromptTmpl = `Extract the following fields from the user text and respond ONLY with a JSON object (no additional text).
Fields: name, email, date, time. Use ISO date format YYYY-MM-DD if possible. Use HH:MM for time.
If a field is missing, set name/email to "Unknown" and date/time to "TBD".

User text:
{{.Query}}`
)

// renderPrompt executes a prompt template against data
func renderPrompt(name, tmpl string, data interface{}) (string, error) {
	t, err := template.New(name).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}
	return buf.String(), nil
}
