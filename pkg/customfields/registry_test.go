package customfields

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/dukex/hireflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func decodeConfig(t *testing.T, raw string) models.CustomFieldConfig {
	t.Helper()

	var config models.CustomFieldConfig
	require.NoError(t, json.Unmarshal([]byte(raw), &config))

	return config
}

func TestMerge_UnionOfPartialMaps(t *testing.T) {
	config := decodeConfig(t, `{
		"fields": {
			"remote_policy": {"label": "Remote", "type": "select", "options": ["onsite", "hybrid"], "sort_order": 2},
			"portfolio": {"type": "url", "required": true, "sort_order": 1}
		},
		"field_labels": {"portfolio": "Portfolio link", "years_experience": "Years of experience"},
		"field_types": {"years_experience": "NUMBER", "remote_policy": "multi-select"},
		"field_required": {"years_experience": true, "portfolio": false}
	}`)

	defs, warnings := Merge(config)
	require.Empty(t, warnings)
	require.Len(t, defs, 3)

	assert.Equal(t, "years_experience", defs[0].Key, "sort order 0 first")
	assert.Equal(t, "Years of experience", defs[0].Label)
	assert.Equal(t, models.FieldNumber, defs[0].Type)
	assert.True(t, defs[0].IsRequired)

	assert.Equal(t, "portfolio", defs[1].Key)
	assert.Equal(t, "Portfolio link", defs[1].Label, "explicit label map wins")
	assert.Equal(t, models.FieldURL, defs[1].Type)
	assert.False(t, defs[1].IsRequired, "explicit required map wins over embedded")

	assert.Equal(t, "remote_policy", defs[2].Key)
	assert.Equal(t, "Remote", defs[2].Label, "embedded label used as fallback")
	assert.Equal(t, models.FieldMultiselect, defs[2].Type, "explicit type map wins")
	assert.Len(t, defs[2].Options, 2)
}

func TestMerge_FieldOnlyInFieldsUsesEmbeddedProperties(t *testing.T) {
	config := decodeConfig(t, `{"fields": {"start_date": {"type": "date", "required": true}}}`)

	defs, _ := Merge(config)
	require.Len(t, defs, 1)

	assert.Equal(t, "Start date", defs[0].Label)
	assert.Equal(t, models.FieldDate, defs[0].Type)
	assert.True(t, defs[0].IsRequired)
}

func TestMerge_UnknownTypeFallsBackToText(t *testing.T) {
	config := models.CustomFieldConfig{FieldTypes: map[string]string{"location": "remote"}}

	defs, warnings := Merge(config)
	require.Len(t, defs, 1)

	assert.Equal(t, models.FieldText, defs[0].Type)
	require.Len(t, warnings, 1)
	assert.Equal(t, "location", warnings[0].FieldKey)
}

func TestMerge_IsDeterministic(t *testing.T) {
	config := models.CustomFieldConfig{
		FieldLabels: map[string]string{"c": "C", "a": "A", "b": "B", "d": "D"},
	}

	first, _ := Merge(config)
	for range 20 {
		again, _ := Merge(config)
		assert.Equal(t, first, again)
	}
}

func TestHumanizeKey(t *testing.T) {
	assert.Equal(t, "Years experience", HumanizeKey("years_experience"))
	assert.Equal(t, "Remote policy", HumanizeKey("Remote-Policy"))
	assert.Equal(t, "___", HumanizeKey("___"))
}

func TestResolve_NoOverrideNoDefaultIsHidden(t *testing.T) {
	registry := NewRegistry("wf-1", models.CustomFieldConfig{
		FieldTypes: map[string]string{"notes": "text"},
	}, slog.Default())

	res, ok := registry.Resolve("any-stage", "notes")
	require.True(t, ok)

	assert.Equal(t, models.StageFieldVisibility{Visible: false, Required: false}, res.Visibility())
	assert.Equal(t, SourceDefinition, res.Source)
}

func TestResolve_RequiredAtWorkflowLevelWithoutOverride(t *testing.T) {
	registry := NewRegistry("wf-1", models.CustomFieldConfig{
		FieldTypes:    map[string]string{"years_experience": "NUMBER"},
		FieldRequired: map[string]bool{"years_experience": true},
	}, nil)

	for _, stageID := range []string{"screen", "offer", "hired"} {
		res, ok := registry.Resolve(stageID, "years_experience")
		require.True(t, ok)

		assert.True(t, res.AdminRequired, stageID)
		assert.False(t, res.CandidateVisible, stageID)
		assert.False(t, res.CandidateRequired, stageID)
	}

	assert.Len(t, registry.AdminFields("screen"), 1)
	assert.Empty(t, registry.CandidateFields("screen"))
}

func TestResolve_WorkflowDefaultThenStageOverride(t *testing.T) {
	registry := NewRegistry("wf-1", models.CustomFieldConfig{
		FieldLabels: map[string]string{"salary_band": "Salary band", "team": "Team"},
		CandidateVisibilityDefault: map[string]models.StageFieldVisibility{
			"salary_band": {Visible: true, Required: true},
			"team":        {Visible: true},
		},
		StageOverrides: map[string]map[string]models.StageFieldOverride{
			"offer": {
				"salary_band": {Visible: ptr(false)},
				"team":        {Required: ptr(true), Label: ptr("Hiring team")},
			},
		},
	}, nil)

	res, _ := registry.Resolve("screen", "salary_band")
	assert.Equal(t, SourceWorkflowDefault, res.Source)
	assert.True(t, res.CandidateVisible)
	assert.True(t, res.CandidateRequired)

	res, _ = registry.Resolve("offer", "salary_band")
	assert.Equal(t, SourceStageOverride, res.Source)
	assert.False(t, res.CandidateVisible)
	assert.False(t, res.CandidateRequired, "hidden fields are never candidate-required")

	res, _ = registry.Resolve("offer", "team")
	assert.True(t, res.CandidateVisible, "visibility inherited from workflow default")
	assert.True(t, res.CandidateRequired)
	assert.True(t, res.AdminRequired)
	assert.Equal(t, "Hiring team", res.Label)

	assert.Equal(t, []string{"team"}, keys(registry.CandidateFields("offer")))
	assert.Equal(t, []string{"salary_band", "team"}, keys(registry.CandidateFields("screen")))
}

func TestNewRegistry_SkipsOverridesForUndefinedFields(t *testing.T) {
	registry := NewRegistry("wf-1", models.CustomFieldConfig{
		FieldLabels: map[string]string{"team": "Team"},
		StageOverrides: map[string]map[string]models.StageFieldOverride{
			"offer": {"ghost": {Visible: ptr(true)}},
		},
	}, nil)

	_, ok := registry.Resolve("offer", "ghost")
	assert.False(t, ok)

	fields := registry.CandidateFields("offer")
	assert.Empty(t, fields)

	warnings := registry.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "offer", warnings[0].StageID)
	assert.Equal(t, "ghost", warnings[0].FieldKey)
	assert.Contains(t, warnings[0].Message, ErrConfigInconsistency.Error())
}

func TestMissingRequired(t *testing.T) {
	registry := NewRegistry("wf-1", models.CustomFieldConfig{
		FieldTypes:    map[string]string{"years_experience": "number", "skills": "multiselect", "notes": "text"},
		FieldRequired: map[string]bool{"years_experience": true, "skills": true},
	}, nil)

	missing := registry.MissingRequired("screen", map[string]any{
		"years_experience": 3.0,
		"skills":           []any{},
	})

	assert.Equal(t, []string{"skills"}, missing.Fields())
}

func TestIsUnset(t *testing.T) {
	assert.True(t, IsUnset(nil))
	assert.True(t, IsUnset(""))
	assert.True(t, IsUnset([]any{}))
	assert.True(t, IsUnset(map[string]any{}))
	assert.False(t, IsUnset(false))
	assert.False(t, IsUnset(0.0))
	assert.False(t, IsUnset("x"))
}

func keys(resolutions []Resolution) []string {
	out := make([]string, 0, len(resolutions))
	for _, r := range resolutions {
		out = append(out, r.Definition.Key)
	}

	return out
}
