package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FieldType is the closed set of custom field types.
// The canonical representation is upper-case; ParseFieldType is the only
// place raw values are interpreted.
type FieldType string

const (
	FieldText        FieldType = "TEXT"
	FieldTextarea    FieldType = "TEXTAREA"
	FieldNumber      FieldType = "NUMBER"
	FieldDate        FieldType = "DATE"
	FieldSelect      FieldType = "SELECT"
	FieldMultiselect FieldType = "MULTISELECT"
	FieldBoolean     FieldType = "BOOLEAN"
	FieldURL         FieldType = "URL"
	FieldObject      FieldType = "OBJECT"
)

var fieldTypes = []FieldType{
	FieldText,
	FieldTextarea,
	FieldNumber,
	FieldDate,
	FieldSelect,
	FieldMultiselect,
	FieldBoolean,
	FieldURL,
	FieldObject,
}

var fieldTypeAliases = map[string]FieldType{
	"STRING":       FieldText,
	"LONG_TEXT":    FieldTextarea,
	"INT":          FieldNumber,
	"INTEGER":      FieldNumber,
	"FLOAT":        FieldNumber,
	"DECIMAL":      FieldNumber,
	"DROPDOWN":     FieldSelect,
	"MULTI_SELECT": FieldMultiselect,
	"BOOL":         FieldBoolean,
	"CHECKBOX":     FieldBoolean,
	"LINK":         FieldURL,
	"JSON":         FieldObject,
}

// FieldTypes returns every field type in declaration order.
func FieldTypes() []FieldType {
	out := make([]FieldType, len(fieldTypes))
	copy(out, fieldTypes)

	return out
}

// ParseFieldType maps a raw type name to its canonical FieldType.
func ParseFieldType(raw string) (FieldType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)

	for _, t := range fieldTypes {
		if string(t) == normalized {
			return t, nil
		}
	}

	if t, ok := fieldTypeAliases[normalized]; ok {
		return t, nil
	}

	return "", fmt.Errorf("unknown field type %q", raw)
}

// FieldOption is a selectable value. In JSON it may be a bare string or
// an object with value and label.
type FieldOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func (o *FieldOption) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		o.Value = s
		o.Label = s

		return nil
	}

	type alias FieldOption

	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	if a.Label == "" {
		a.Label = a.Value
	}

	*o = FieldOption(a)

	return nil
}

// CustomFieldDefinition is the resolved definition of a custom field.
// Key is the durable identity within a workflow.
type CustomFieldDefinition struct {
	Key        string          `json:"field_key"`
	Label      string          `json:"label"`
	Type       FieldType       `json:"field_type"`
	Options    []FieldOption   `json:"options,omitempty"`
	IsRequired bool            `json:"is_required"`
	SortOrder  int             `json:"sort_order"`
	Schema     json.RawMessage `json:"schema,omitempty"` // Optional JSON schema for OBJECT fields
}

// HasOption reports whether value is one of the configured options.
func (d CustomFieldDefinition) HasOption(value string) bool {
	for _, opt := range d.Options {
		if opt.Value == value {
			return true
		}
	}

	return false
}

// OptionLabel returns the label for value, or value itself when unknown.
func (d CustomFieldDefinition) OptionLabel(value string) string {
	for _, opt := range d.Options {
		if opt.Value == value {
			return opt.Label
		}
	}

	return value
}

// RawField holds the sub-properties embedded in the "fields" map. Every
// property is optional.
type RawField struct {
	Label     *string         `json:"label,omitempty"`
	Type      *string         `json:"type,omitempty"`
	Required  *bool           `json:"required,omitempty"`
	Options   []FieldOption   `json:"options,omitempty"`
	SortOrder *int            `json:"sort_order,omitempty"`
	Schema    json.RawMessage `json:"schema,omitempty"`
}

// StageFieldVisibility is the resolved candidate-facing visibility of a field.
type StageFieldVisibility struct {
	Visible  bool `json:"visible"`
	Required bool `json:"required"`
}

// UnmarshalJSON accepts either a bare boolean (visible) or an object.
func (v *StageFieldVisibility) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		v.Visible = b
		v.Required = false

		return nil
	}

	type alias StageFieldVisibility

	return json.Unmarshal(data, (*alias)(v))
}

// StageFieldOverride is a per-stage override. Nil members inherit.
type StageFieldOverride struct {
	Visible  *bool   `json:"visible,omitempty"`
	Required *bool   `json:"required,omitempty"`
	Label    *string `json:"label,omitempty"`
}

// CustomFieldConfig is the workflow-level custom field configuration as
// sent by the API. The four field maps are populated independently and
// may each be partial.
type CustomFieldConfig struct {
	Fields                     map[string]RawField                      `json:"fields,omitempty"`
	FieldLabels                map[string]string                        `json:"field_labels,omitempty"`
	FieldTypes                 map[string]string                        `json:"field_types,omitempty"`
	FieldRequired              map[string]bool                          `json:"field_required,omitempty"`
	CandidateVisibilityDefault map[string]StageFieldVisibility          `json:"candidate_visibility_default,omitempty"`
	StageOverrides             map[string]map[string]StageFieldOverride `json:"stage_overrides,omitempty"` // stageID -> fieldKey -> override
}
