package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

// OutreachEmailData wraps an already rendered sequence message in the layout.
type OutreachEmailData struct {
	Title string
	Body  template.HTML
}

// EscalationField is one labelled row of an escalation email.
type EscalationField struct {
	Label string
	Value string
}

// EscalationLink is an operator action button.
type EscalationLink struct {
	Label string
	URL   string
}

// EscalationEmailData is the admin alert for a failed delivery.
type EscalationEmailData struct {
	Severity    string
	Title       string
	Description string
	Fields      []EscalationField
	Links       []EscalationLink
}

type outreachTemplateData struct {
	baseEmailData
	Body template.HTML
}

type escalationTemplateData struct {
	baseEmailData
	Severity string
	Fields   []EscalationField
	Links    []EscalationLink
}

// RenderOutreach renders a lead-facing sequence email.
func RenderOutreach(data OutreachEmailData) (string, error) {
	return renderEmailTemplate("outreach.html", outreachTemplateData{
		baseEmailData: baseEmailData{Title: data.Title},
		Body:          data.Body,
	})
}

// RenderEscalation renders the operator alert for a failed delivery.
func RenderEscalation(data EscalationEmailData) (string, error) {
	var cta baseEmailData
	cta.Title = data.Title
	cta.Heading = data.Title
	cta.Subheading = data.Description
	if len(data.Links) > 0 {
		cta.CTALabel = data.Links[0].Label
		cta.CTAURL = data.Links[0].URL
	}
	return renderEmailTemplate("escalation.html", escalationTemplateData{
		baseEmailData: cta,
		Severity:      data.Severity,
		Fields:        data.Fields,
		Links:         data.Links,
	})
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
