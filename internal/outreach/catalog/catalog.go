// Package catalog loads and activates versions of the outreach sequence.
package catalog

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"
)

// Document is the YAML form of a catalog.
type Document struct {
	Steps []StepDocument `yaml:"steps" validate:"required,min=1,dive"`
}

type StepDocument struct {
	Order         int              `yaml:"order" validate:"gte=1"`
	DelayMinutes  int              `yaml:"delay_minutes" validate:"gte=0"`
	Channel       string           `yaml:"channel" validate:"required,channel"`
	Template      string           `yaml:"template" validate:"required,max=100"`
	Subject       string           `yaml:"subject" validate:"max=200"`
	Inactive      bool             `yaml:"inactive"`
	RetryPolicies []PolicyDocument `yaml:"retry_policies" validate:"dive"`
}

type PolicyDocument struct {
	Name              string `yaml:"name" validate:"required,max=100"`
	RetryAfterMinutes int    `yaml:"retry_after_minutes" validate:"gte=0"`
}

// TemplateSet reports whether a message template exists.
type TemplateSet interface {
	Has(ref string) bool
}

// Service provides catalog import and inspection.
type Service struct {
	steps     repository.StepReader
	writer    repository.CatalogWriter
	templates TemplateSet
	val       *validator.Validator
	log       *logger.Logger
}

// New creates a catalog service. templates may be nil to skip the reference check.
func New(steps repository.StepReader, writer repository.CatalogWriter, templates TemplateSet, val *validator.Validator, log *logger.Logger) *Service {
	return &Service{steps: steps, writer: writer, templates: templates, val: val, log: log}
}

// Parse decodes a YAML catalog. Unknown keys are rejected.
func Parse(r io.Reader) (Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return Document{}, apperr.Validation(fmt.Sprintf("invalid catalog yaml: %v", err))
	}
	return doc, nil
}

// Validate checks field rules, unique step order and template references.
func (s *Service) Validate(doc Document) error {
	if err := s.val.Struct(doc); err != nil {
		return apperr.Validation(err.Error())
	}

	seen := make(map[int]struct{}, len(doc.Steps))
	for _, step := range doc.Steps {
		if _, dup := seen[step.Order]; dup {
			return apperr.Validation(fmt.Sprintf("duplicate step order %d", step.Order))
		}
		seen[step.Order] = struct{}{}

		ch, _ := domain.ParseChannel(step.Channel)
		if ch == domain.ChannelEmail && strings.TrimSpace(step.Subject) == "" {
			return apperr.Validation(fmt.Sprintf("step %d: email steps need a subject", step.Order))
		}
		if s.templates != nil && ch != domain.ChannelCall && !s.templates.Has(step.Template) {
			return apperr.Validation(fmt.Sprintf("step %d: unknown template %q", step.Order, step.Template))
		}
	}
	return nil
}

// Import validates doc and activates it as the next catalog version.
// Deliveries already scheduled keep pointing at the steps they were created from.
func (s *Service) Import(ctx context.Context, doc Document) (int, error) {
	if err := s.Validate(doc); err != nil {
		return 0, err
	}

	steps := make([]repository.CatalogStep, 0, len(doc.Steps))
	for _, sd := range doc.Steps {
		ch, _ := domain.ParseChannel(sd.Channel)
		step := domain.SequenceStep{
			ID:                 uuid.New(),
			Order:              sd.Order,
			DelayOffsetMinutes: sd.DelayMinutes,
			Channel:            ch,
			MessageTemplateRef: strings.TrimSpace(sd.Template),
			Subject:            strings.TrimSpace(sd.Subject),
			IsActive:           !sd.Inactive,
		}
		policies := make([]domain.RetryPolicy, 0, len(sd.RetryPolicies))
		for _, pd := range sd.RetryPolicies {
			policies = append(policies, domain.RetryPolicy{
				ID:                uuid.New(),
				SequenceStepID:    step.ID,
				Name:              strings.TrimSpace(pd.Name),
				RetryAfterMinutes: pd.RetryAfterMinutes,
				IsActive:          true,
			})
		}
		steps = append(steps, repository.CatalogStep{Step: step, Policies: policies})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Step.Order < steps[j].Step.Order })

	version, err := s.writer.ActivateCatalog(ctx, steps)
	if err != nil {
		return 0, fmt.Errorf("activate catalog: %w", err)
	}
	s.log.Info("sequence catalog activated", "version", version, "steps", len(steps))
	return version, nil
}

// ImportYAML is Parse followed by Import.
func (s *Service) ImportYAML(ctx context.Context, r io.Reader) (int, error) {
	doc, err := Parse(r)
	if err != nil {
		return 0, err
	}
	return s.Import(ctx, doc)
}

// ListActive returns the active steps ordered by position.
func (s *Service) ListActive(ctx context.Context) ([]domain.SequenceStep, error) {
	return s.steps.ListActiveSteps(ctx)
}
