// Package customfields resolves a workflow's custom field configuration into
// field definitions and answers per-stage visibility questions.
package customfields

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"github.com/dukex/hireflow/pkg/models"
)

// Warning describes a configuration problem that was tolerated.
type Warning struct {
	StageID  string `json:"stage_id,omitempty"`
	FieldKey string `json:"field_key"`
	Message  string `json:"message"`
}

// Merge produces one definition per field key from the four independently
// populated maps. The explicit label, type and required maps take
// precedence over the sub-properties embedded in "fields". The result is
// sorted by sort order, then key.
func Merge(config models.CustomFieldConfig) ([]models.CustomFieldDefinition, []Warning) {
	keys := make(map[string]struct{})

	for key := range config.Fields {
		keys[key] = struct{}{}
	}

	for key := range config.FieldLabels {
		keys[key] = struct{}{}
	}

	for key := range config.FieldTypes {
		keys[key] = struct{}{}
	}

	for key := range config.FieldRequired {
		keys[key] = struct{}{}
	}

	definitions := make([]models.CustomFieldDefinition, 0, len(keys))

	var warnings []Warning

	for key := range keys {
		if strings.TrimSpace(key) == "" {
			warnings = append(warnings, Warning{FieldKey: key, Message: "empty field key ignored"})

			continue
		}

		def, warn := mergeField(key, config)
		if warn != nil {
			warnings = append(warnings, *warn)
		}

		definitions = append(definitions, def)
	}

	slices.SortFunc(definitions, func(a, b models.CustomFieldDefinition) int {
		if n := cmp.Compare(a.SortOrder, b.SortOrder); n != 0 {
			return n
		}

		return cmp.Compare(a.Key, b.Key)
	})

	slices.SortFunc(warnings, func(a, b Warning) int {
		return cmp.Compare(a.FieldKey, b.FieldKey)
	})

	return definitions, warnings
}

func mergeField(key string, config models.CustomFieldConfig) (models.CustomFieldDefinition, *Warning) {
	embedded := config.Fields[key]

	def := models.CustomFieldDefinition{
		Key:     key,
		Label:   HumanizeKey(key),
		Type:    models.FieldText,
		Options: embedded.Options,
		Schema:  embedded.Schema,
	}

	if embedded.Label != nil && *embedded.Label != "" {
		def.Label = *embedded.Label
	}

	if label, ok := config.FieldLabels[key]; ok && label != "" {
		def.Label = label
	}

	if embedded.Required != nil {
		def.IsRequired = *embedded.Required
	}

	if required, ok := config.FieldRequired[key]; ok {
		def.IsRequired = required
	}

	if embedded.SortOrder != nil {
		def.SortOrder = *embedded.SortOrder
	}

	rawType := ""
	if embedded.Type != nil {
		rawType = *embedded.Type
	}

	if t, ok := config.FieldTypes[key]; ok && t != "" {
		rawType = t
	}

	if rawType == "" {
		return def, nil
	}

	fieldType, err := models.ParseFieldType(rawType)
	if err != nil {
		return def, &Warning{FieldKey: key, Message: "unknown field type " + rawType + ", rendering as TEXT"}
	}

	def.Type = fieldType

	return def, nil
}

// HumanizeKey turns "years_experience" into "Years experience".
func HumanizeKey(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
	})

	if len(words) == 0 {
		return key
	}

	label := strings.ToLower(strings.Join(words, " "))
	runes := []rune(label)
	runes[0] = unicode.ToUpper(runes[0])

	return string(runes)
}
