package customfields

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dukex/hireflow/pkg/log"
	"github.com/dukex/hireflow/pkg/models"
)

// ErrConfigInconsistency marks a stage override that names an undefined field.
var ErrConfigInconsistency = errors.New("custom field configuration inconsistency")

// InconsistencyError identifies the offending override.
type InconsistencyError struct {
	StageID  string
	FieldKey string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("%s: stage %s overrides undefined field %q", ErrConfigInconsistency, e.StageID, e.FieldKey)
}

func (e *InconsistencyError) Unwrap() error {
	return ErrConfigInconsistency
}

// Source records which layer decided a field's candidate visibility.
type Source string

const (
	SourceStageOverride   Source = "stage_override"
	SourceWorkflowDefault Source = "workflow_default"
	SourceDefinition      Source = "definition"
)

// Resolution is a field as seen from one stage.
type Resolution struct {
	Definition        models.CustomFieldDefinition `json:"definition"`
	Label             string                       `json:"label"`
	AdminRequired     bool                         `json:"admin_required"`
	CandidateVisible  bool                         `json:"candidate_visible"`
	CandidateRequired bool                         `json:"candidate_required"`
	Source            Source                       `json:"source"`
}

// Visibility returns the candidate-facing visibility.
func (r Resolution) Visibility() models.StageFieldVisibility {
	return models.StageFieldVisibility{Visible: r.CandidateVisible, Required: r.CandidateRequired}
}

// Audience selects between the company-facing and candidate-facing forms.
type Audience string

const (
	AudienceAdmin     Audience = "admin"
	AudienceCandidate Audience = "candidate"
)

// Registry holds the merged definitions of one workflow. It is immutable
// after construction.
type Registry struct {
	workflowID  string
	definitions []models.CustomFieldDefinition
	byKey       map[string]models.CustomFieldDefinition
	defaults    map[string]models.StageFieldVisibility
	overrides   map[string]map[string]models.StageFieldOverride
	warnings    []Warning
}

// NewRegistry merges config once and drops overrides that reference
// undefined fields, logging each as a configuration inconsistency.
func NewRegistry(workflowID string, config models.CustomFieldConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = log.WithModule("customfields")
	}

	definitions, warnings := Merge(config)

	r := &Registry{
		workflowID:  workflowID,
		definitions: definitions,
		byKey:       make(map[string]models.CustomFieldDefinition, len(definitions)),
		defaults:    make(map[string]models.StageFieldVisibility),
		overrides:   make(map[string]map[string]models.StageFieldOverride),
		warnings:    warnings,
	}

	for _, def := range definitions {
		r.byKey[def.Key] = def
	}

	for key, vis := range config.CandidateVisibilityDefault {
		if _, ok := r.byKey[key]; !ok {
			r.warnings = append(r.warnings, Warning{FieldKey: key, Message: "candidate default for undefined field ignored"})

			continue
		}

		r.defaults[key] = vis
	}

	for stageID, fields := range config.StageOverrides {
		for key, override := range fields {
			if _, ok := r.byKey[key]; !ok {
				err := &InconsistencyError{StageID: stageID, FieldKey: key}
				logger.Warn("Skipping stage override", "workflow_id", workflowID, "error", err)
				r.warnings = append(r.warnings, Warning{StageID: stageID, FieldKey: key, Message: err.Error()})

				continue
			}

			if r.overrides[stageID] == nil {
				r.overrides[stageID] = make(map[string]models.StageFieldOverride)
			}

			r.overrides[stageID][key] = override
		}
	}

	for _, w := range warnings {
		logger.Warn("Custom field configuration warning", "workflow_id", workflowID, "field_key", w.FieldKey, "message", w.Message)
	}

	slices.SortFunc(r.warnings, func(a, b Warning) int {
		if n := cmp.Compare(a.StageID, b.StageID); n != 0 {
			return n
		}

		return cmp.Compare(a.FieldKey, b.FieldKey)
	})

	return r
}

func (r *Registry) WorkflowID() string {
	return r.workflowID
}

// Definitions returns every merged definition in display order.
func (r *Registry) Definitions() []models.CustomFieldDefinition {
	return slices.Clone(r.definitions)
}

func (r *Registry) Definition(key string) (models.CustomFieldDefinition, bool) {
	def, ok := r.byKey[key]

	return def, ok
}

// Warnings returns the tolerated configuration problems.
func (r *Registry) Warnings() []Warning {
	return slices.Clone(r.warnings)
}

// Resolve applies, in order, the stage override, the workflow candidate
// default and the definition default (hidden, not required) to key.
func (r *Registry) Resolve(stageID, key string) (Resolution, bool) {
	def, ok := r.byKey[key]
	if !ok {
		return Resolution{}, false
	}

	res := Resolution{
		Definition:    def,
		Label:         def.Label,
		AdminRequired: def.IsRequired,
		Source:        SourceDefinition,
	}

	if vis, ok := r.defaults[key]; ok {
		res.CandidateVisible = vis.Visible
		res.CandidateRequired = vis.Visible && vis.Required
		res.Source = SourceWorkflowDefault
	}

	override, ok := r.overrides[stageID][key]
	if !ok {
		return res, true
	}

	res.Source = SourceStageOverride

	if override.Label != nil && *override.Label != "" {
		res.Label = *override.Label
	}

	if override.Visible != nil {
		res.CandidateVisible = *override.Visible
	}

	if override.Required != nil {
		res.AdminRequired = *override.Required
		res.CandidateRequired = *override.Required
	}

	if !res.CandidateVisible {
		res.CandidateRequired = false
	}

	return res, true
}

// Fields returns the resolutions shown to audience at stageID. Admins see
// every field; candidates see only visible ones.
func (r *Registry) Fields(stageID string, audience Audience) []Resolution {
	out := make([]Resolution, 0, len(r.definitions))

	for _, def := range r.definitions {
		res, _ := r.Resolve(stageID, def.Key)
		if audience == AudienceCandidate && !res.CandidateVisible {
			continue
		}

		out = append(out, res)
	}

	return out
}

// AdminFields returns every field for the company-facing editor.
func (r *Registry) AdminFields(stageID string) []Resolution {
	return r.Fields(stageID, AudienceAdmin)
}

// CandidateFields returns the fields visible to candidates at stageID.
func (r *Registry) CandidateFields(stageID string) []Resolution {
	return r.Fields(stageID, AudienceCandidate)
}

// MissingRequired lists admin-required fields that are unset in values.
func (r *Registry) MissingRequired(stageID string, values map[string]any) models.FieldErrors {
	missing := models.FieldErrors{}

	for _, res := range r.AdminFields(stageID) {
		if res.AdminRequired && IsUnset(values[res.Definition.Key]) {
			missing.Add(res.Definition.Key, res.Label+" is required")
		}
	}

	return missing
}

// IsUnset reports whether v counts as no value: nil, "", or an empty list or object.
func IsUnset(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}
