package catalog

import (
	"context"
	"strings"
	"testing"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"
)

type templateNames map[string]bool

func (t templateNames) Has(ref string) bool { return t[ref] }

const sampleCatalog = `
steps:
  - order: 2
    delay_minutes: 1440
    channel: call
    template: intro-call
  - order: 1
    delay_minutes: 0
    channel: EMAIL
    template: welcome
    subject: "Welcome {{lead.first_name}}"
    retry_policies:
      - name: notify-ops
        retry_after_minutes: 30
      - name: second-look
        retry_after_minutes: 120
`

func newService(mem *repository.Memory) *Service {
	return New(mem, mem, templateNames{"welcome": true}, validator.New(), logger.Discard())
}

func TestImportYAMLActivatesVersion(t *testing.T) {
	mem := repository.NewMemory()
	svc := newService(mem)

	version, err := svc.ImportYAML(context.Background(), strings.NewReader(sampleCatalog))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != 1 {
		t.Fatalf("expected version 1, got %d", version)
	}

	steps, err := svc.ListActive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 2 || steps[0].Channel != domain.ChannelEmail || steps[1].Channel != domain.ChannelCall {
		t.Fatalf("unexpected steps %+v", steps)
	}
	if steps[1].DelayOffsetMinutes != 1440 {
		t.Fatalf("expected delay 1440, got %d", steps[1].DelayOffsetMinutes)
	}

	policies, err := mem.ListActivePolicies(context.Background(), steps[0].ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("expected 2 policies, got %d", len(policies))
	}

	version, err = svc.ImportYAML(context.Background(), strings.NewReader(sampleCatalog))
	if err != nil || version != 2 {
		t.Fatalf("expected version 2, got %d (%v)", version, err)
	}
	steps, _ = svc.ListActive(context.Background())
	if len(steps) != 2 || steps[0].CatalogVersion != 2 {
		t.Fatalf("expected only version 2 steps active, got %+v", steps)
	}
}

func TestImportRejectsInvalidCatalogs(t *testing.T) {
	cases := map[string]string{
		"unknown channel": `
steps:
  - order: 1
    channel: FAX
    template: welcome
`,
		"duplicate order": `
steps:
  - order: 1
    channel: SMS
    template: welcome
  - order: 1
    channel: SMS
    template: welcome
`,
		"missing subject": `
steps:
  - order: 1
    channel: EMAIL
    template: welcome
`,
		"unknown template": `
steps:
  - order: 1
    channel: EMAIL
    template: nope
    subject: hi
`,
		"negative delay": `
steps:
  - order: 1
    delay_minutes: -5
    channel: SMS
    template: welcome
`,
		"unknown key": `
steps:
  - order: 1
    channel: SMS
    template: welcome
    colour: red
`,
		"empty": `steps: []`,
	}

	for name, body := range cases {
		mem := repository.NewMemory()
		_, err := newService(mem).ImportYAML(context.Background(), strings.NewReader(body))
		if !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
		if steps, _ := mem.ListActiveSteps(context.Background()); len(steps) != 0 {
			t.Fatalf("%s: expected nothing activated", name)
		}
	}
}
