package channels

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"regexp"
	"strings"
	texttemplate "text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"outreach_backend/internal/outreach/domain"
)

//go:embed templates/*.html
var messageFS embed.FS

var placeholderPattern = regexp.MustCompile(`{{\s*([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*)\s*}}`)

// Templates renders sequence messages stored as templates/<ref>.html.
// Messages use {{lead.first_name}} style placeholders.
type Templates struct {
	sources map[string]string
	appURL  string
}

func NewTemplates(appURL string) (*Templates, error) {
	entries, err := fs.Glob(messageFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	t := &Templates{
		sources: make(map[string]string, len(entries)),
		appURL:  strings.TrimRight(appURL, "/"),
	}
	for _, name := range entries {
		raw, err := messageFS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		ref := strings.TrimSuffix(strings.TrimPrefix(name, "templates/"), ".html")
		t.sources[ref] = string(raw)
	}
	return t, nil
}

// Has reports whether ref names an embedded message.
func (t *Templates) Has(ref string) bool {
	_, ok := t.sources[ref]
	return ok
}

// Render returns the subject and HTML body for lead.
func (t *Templates) Render(ref, subject string, lead domain.Lead) (string, htmltemplate.HTML, error) {
	src, ok := t.sources[ref]
	if !ok {
		return "", "", fmt.Errorf("unknown message template %q", ref)
	}
	data := t.data(lead)

	var subj bytes.Buffer
	st, err := texttemplate.New("subject").Option("missingkey=zero").Parse(normalizePlaceholders(subject, data))
	if err != nil {
		return "", "", fmt.Errorf("parse subject: %w", err)
	}
	if err := st.Execute(&subj, data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}

	var body bytes.Buffer
	bt, err := htmltemplate.New(ref).Option("missingkey=zero").Parse(normalizePlaceholders(src, data))
	if err != nil {
		return "", "", fmt.Errorf("parse template %s: %w", ref, err)
	}
	if err := bt.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("render template %s: %w", ref, err)
	}
	return strings.TrimSpace(subj.String()), htmltemplate.HTML(body.String()), nil
}

func (t *Templates) data(lead domain.Lead) map[string]any {
	// Casers keep state; one per render.
	title := cases.Title(language.Dutch)
	return map[string]any{
		"lead": map[string]any{
			"first_name": title.String(strings.TrimSpace(lead.FirstName)),
			"last_name":  title.String(strings.TrimSpace(lead.LastName)),
			"full_name":  title.String(lead.FullName()),
			"email":      lead.Email,
			"phone":      lead.Phone,
		},
		"app": map[string]any{
			"url": t.appURL,
		},
	}
}

// normalizePlaceholders rewrites {{lead.first_name}} into {{.lead.first_name}}.
// Paths that do not resolve against data render as empty.
func normalizePlaceholders(tpl string, data map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(tpl, func(match string) string {
		sub := placeholderPattern.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		path, ok := resolvePath(sub[1], data)
		if !ok {
			return ""
		}
		return "{{." + path + "}}"
	})
}

func resolvePath(path string, data map[string]any) (string, bool) {
	var current any = data
	resolved := make([]string, 0, 2)
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return "", false
		}
		found := false
		for key, value := range m {
			if strings.EqualFold(key, segment) {
				resolved = append(resolved, key)
				current = value
				found = true
				break
			}
		}
		if !found {
			return "", false
		}
	}
	return strings.Join(resolved, "."), true
}
