package notification

import (
	"fmt"
	"strings"
	"sync"
)

// Template is a subject/body pair with {{key}} placeholders.
type Template struct {
	ID      string
	Subject string
	Body    string
}

const TemplateConfirmation = "appointment-confirmation"

// TemplateEngine holds templates by ID and renders them with string data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.RegisterTemplate(Template{
		ID:      TemplateConfirmation,
		Subject: "Appointment Confirmation - {{doctor}}",
		Body: `Dear {{patient_name}},

Your appointment has been confirmed with {{doctor}}.

Details:
Date: {{date}}
Time: {{start_time}} - {{end_time}}
Doctor: {{doctor}}
Specialization: {{specialization}}
Fee: {{fee}}

Please arrive 15 minutes before your appointment time.

Best regards,
CareBook
`,
	})
	return e
}

// RegisterTemplate adds or replaces a template.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render substitutes data into the template. Placeholders without data are
// left in place.
func (e *TemplateEngine) Render(id string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[id]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", id)
	}

	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(t.Subject), r.Replace(t.Body), nil
}

// confirmationData maps an event onto the confirmation template keys.
func confirmationData(ev Event) map[string]string {
	return map[string]string{
		"patient_name":   ev.PatientName,
		"doctor":         ev.DoctorName,
		"specialization": ev.Specialization,
		"date":           ev.Date,
		"start_time":     ev.StartTime,
		"end_time":       ev.EndTime,
		"fee":            fmt.Sprintf("%.2f", ev.Fee),
	}
}
