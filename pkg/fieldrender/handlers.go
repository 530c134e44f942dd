package fieldrender

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/hireflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

const isoDate = "2006-01-02"

func changeNotSupported(t models.FieldType, kind ChangeKind) error {
	return fmt.Errorf("%w: %s on %s", ErrUnsupportedChange, kind, t)
}

func asText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// textHandler covers TEXT and TEXTAREA.
type textHandler struct {
	w Widget
}

func (h textHandler) widget() Widget { return h.w }

func (textHandler) fill(c *Control, _ models.CustomFieldDefinition, value any) {
	c.Value = value
	c.Text = asText(value)
}

func (textHandler) display(_ models.CustomFieldDefinition, value any, _ Locale) (string, bool) {
	text := asText(value)

	return text, text == ""
}

func (textHandler) apply(def models.CustomFieldDefinition, _ any, change Change) (any, error) {
	if change.Kind != ChangeText {
		return nil, changeNotSupported(def.Type, change.Kind)
	}

	if change.Text == "" {
		return nil, nil
	}

	return change.Text, nil
}

func (textHandler) validate(models.CustomFieldDefinition, any) error {
	return nil
}

type urlHandler struct {
	textHandler
}

func (urlHandler) widget() Widget { return WidgetURL }

func (urlHandler) apply(def models.CustomFieldDefinition, _ any, change Change) (any, error) {
	if change.Kind != ChangeText {
		return nil, changeNotSupported(def.Type, change.Kind)
	}

	text := strings.TrimSpace(change.Text)
	if text == "" {
		return nil, nil
	}

	return text, nil
}

func (urlHandler) validate(_ models.CustomFieldDefinition, value any) error {
	text := asText(value)
	if text == "" {
		return nil
	}

	u, err := url.ParseRequestURI(text)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q is not an http(s) URL", ErrInvalidValue, text)
	}

	return nil
}

type numberHandler struct{}

func (numberHandler) widget() Widget { return WidgetNumber }

func (numberHandler) fill(c *Control, _ models.CustomFieldDefinition, value any) {
	c.Value = value

	if n, ok := toNumber(value); ok {
		c.Text = strconv.FormatFloat(n, 'f', -1, 64)

		return
	}

	c.Text = asText(value)
}

func (numberHandler) display(_ models.CustomFieldDefinition, value any, loc Locale) (string, bool) {
	if value == nil {
		return "", true
	}

	n, ok := toNumber(value)
	if !ok {
		return asText(value), false
	}

	return loc.FormatNumber(n), false
}

func (numberHandler) apply(def models.CustomFieldDefinition, _ any, change Change) (any, error) {
	if change.Kind != ChangeText {
		return nil, changeNotSupported(def.Type, change.Kind)
	}

	text := strings.TrimSpace(change.Text)
	if text == "" {
		return nil, nil
	}

	n, err := parseNumber(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, change.Text)
	}

	return n, nil
}

func (numberHandler) validate(_ models.CustomFieldDefinition, value any) error {
	if value == nil {
		return nil
	}

	if _, ok := toNumber(value); !ok {
		return fmt.Errorf("%w: %v is not a number", ErrInvalidValue, value)
	}

	return nil
}

// errNotFinite is returned for NaN and infinities, which JSON cannot carry.
var errNotFinite = errors.New("number is not finite")

func parseNumber(text string) (float64, error) {
	cleaned := strings.NewReplacer(",", "", "_", "", " ", "").Replace(text)

	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, err
	}

	if !finite(n) {
		return 0, errNotFinite
	}

	return n, nil
}

func finite(n float64) bool {
	return !math.IsNaN(n) && !math.IsInf(n, 0)
}

func toNumber(value any) (float64, bool) {
	n, ok := anyNumber(value)

	return n, ok && finite(n)
}

func anyNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case json.Number:
		n, err := v.Float64()

		return n, err == nil
	case string:
		n, err := parseNumber(strings.TrimSpace(v))

		return n, err == nil
	default:
		return 0, false
	}
}

type dateHandler struct{}

func (dateHandler) widget() Widget { return WidgetDate }

func (dateHandler) fill(c *Control, _ models.CustomFieldDefinition, value any) {
	c.Value = value

	if d, ok := toDate(value); ok {
		c.Text = d.Format(isoDate)

		return
	}

	c.Text = asText(value)
}

func (dateHandler) display(_ models.CustomFieldDefinition, value any, loc Locale) (string, bool) {
	if value == nil || value == "" {
		return "", true
	}

	d, ok := toDate(value)
	if !ok {
		return asText(value), false
	}

	return loc.FormatDate(d), false
}

func (dateHandler) apply(def models.CustomFieldDefinition, _ any, change Change) (any, error) {
	if change.Kind != ChangeText {
		return nil, changeNotSupported(def.Type, change.Kind)
	}

	text := strings.TrimSpace(change.Text)
	if text == "" {
		return nil, nil
	}

	d, ok := toDate(text)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a date", ErrInvalidValue, change.Text)
	}

	return d.Format(isoDate), nil
}

func (dateHandler) validate(_ models.CustomFieldDefinition, value any) error {
	if value == nil || value == "" {
		return nil
	}

	if _, ok := toDate(value); !ok {
		return fmt.Errorf("%w: %v is not a date", ErrInvalidValue, value)
	}

	return nil
}

func toDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		if d, err := time.Parse(isoDate, v); err == nil {
			return d, true
		}

		if d, err := time.Parse(time.RFC3339, v); err == nil {
			return d, true
		}
	}

	return time.Time{}, false
}

type selectHandler struct{}

func (selectHandler) widget() Widget { return WidgetSelect }

func (selectHandler) fill(c *Control, def models.CustomFieldDefinition, value any) {
	c.Value = value
	c.Text = asText(value)
	c.Options = def.Options

	if c.Text != "" {
		c.Selected = []string{c.Text}
		c.Unknown = !def.HasOption(c.Text)
	}
}

func (selectHandler) display(def models.CustomFieldDefinition, value any, _ Locale) (string, bool) {
	text := asText(value)
	if text == "" {
		return "", true
	}

	return def.OptionLabel(text), false
}

func (selectHandler) apply(def models.CustomFieldDefinition, _ any, change Change) (any, error) {
	if change.Kind != ChangeText {
		return nil, changeNotSupported(def.Type, change.Kind)
	}

	if change.Text == "" {
		return nil, nil
	}

	if !def.HasOption(change.Text) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOption, change.Text)
	}

	return change.Text, nil
}

func (selectHandler) validate(def models.CustomFieldDefinition, value any) error {
	text := asText(value)
	if text != "" && !def.HasOption(text) {
		return fmt.Errorf("%w: %q", ErrUnknownOption, text)
	}

	return nil
}

type multiselectHandler struct{}

func (multiselectHandler) widget() Widget { return WidgetMultiselect }

func (multiselectHandler) fill(c *Control, def models.CustomFieldDefinition, value any) {
	selected := toSet(value)

	c.Value = value
	c.Options = def.Options
	c.Selected = selected
	c.Text = strings.Join(selected, ", ")
}

func (multiselectHandler) display(def models.CustomFieldDefinition, value any, _ Locale) (string, bool) {
	selected := toSet(value)
	if len(selected) == 0 {
		return "", true
	}

	labels := make([]string, 0, len(selected))
	for _, v := range selected {
		labels = append(labels, def.OptionLabel(v))
	}

	return strings.Join(labels, ", "), false
}

// apply toggles one option, keeping the existing selection order and
// appending newly selected options at the end.
func (multiselectHandler) apply(def models.CustomFieldDefinition, current any, change Change) (any, error) {
	if change.Kind != ChangeToggle {
		return nil, changeNotSupported(def.Type, change.Kind)
	}

	selected := toSet(current)
	out := make([]string, 0, len(selected)+1)

	for _, v := range selected {
		if v == change.Option {
			continue
		}

		out = append(out, v)
	}

	if change.On {
		if !def.HasOption(change.Option) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownOption, change.Option)
		}

		if indexOf(selected, change.Option) >= 0 {
			return selected, nil
		}

		out = append(out, change.Option)
	}

	if len(out) == 0 {
		return nil, nil
	}

	return out, nil
}

func (multiselectHandler) validate(def models.CustomFieldDefinition, value any) error {
	for _, v := range toSet(value) {
		if !def.HasOption(v) {
			return fmt.Errorf("%w: %q", ErrUnknownOption, v)
		}
	}

	return nil
}

func indexOf(values []string, v string) int {
	for i, candidate := range values {
		if candidate == v {
			return i
		}
	}

	return -1
}

// toSet reads a stored multiselect value into an ordered list without duplicates.
func toSet(value any) []string {
	var raw []string

	switch v := value.(type) {
	case []string:
		raw = v
	case []any:
		raw = make([]string, 0, len(v))
		for _, item := range v {
			raw = append(raw, asText(item))
		}
	case string:
		if v != "" {
			raw = []string{v}
		}
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if item == "" || indexOf(out, item) >= 0 {
			continue
		}

		out = append(out, item)
	}

	return out
}

type booleanHandler struct{}

func (booleanHandler) widget() Widget { return WidgetCheckbox }

func (booleanHandler) fill(c *Control, _ models.CustomFieldDefinition, value any) {
	c.Value = value
	c.Checked = value == true
	c.Text = strconv.FormatBool(c.Checked)
}

// display shows an absent value as "No" while still reporting it unset.
func (booleanHandler) display(_ models.CustomFieldDefinition, value any, _ Locale) (string, bool) {
	if value == true {
		return "Yes", false
	}

	return "No", value == nil
}

func (booleanHandler) apply(def models.CustomFieldDefinition, _ any, change Change) (any, error) {
	switch change.Kind {
	case ChangeBool:
		return change.On, nil
	case ChangeText:
		b, err := strconv.ParseBool(strings.TrimSpace(change.Text))
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, change.Text)
		}

		return b, nil
	default:
		return nil, changeNotSupported(def.Type, change.Kind)
	}
}

func (booleanHandler) validate(_ models.CustomFieldDefinition, value any) error {
	if value == nil {
		return nil
	}

	if _, ok := value.(bool); !ok {
		return fmt.Errorf("%w: %v is not a boolean", ErrInvalidValue, value)
	}

	return nil
}

// objectHandler edits structured JSON. Text that does not parse is kept
// verbatim so the user can finish typing.
type objectHandler struct{}

func (objectHandler) widget() Widget { return WidgetJSON }

func (objectHandler) fill(c *Control, _ models.CustomFieldDefinition, value any) {
	c.Value = value

	switch v := value.(type) {
	case nil:
	case string:
		c.Text = v
	default:
		raw, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			c.Text = fmt.Sprint(v)

			return
		}

		c.Text = string(raw)
	}
}

func (objectHandler) display(_ models.CustomFieldDefinition, value any, _ Locale) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", true
	case string:
		return v, v == ""
	default:
		raw, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprint(v), false
		}

		return string(raw), false
	}
}

func (objectHandler) apply(def models.CustomFieldDefinition, _ any, change Change) (any, error) {
	if change.Kind != ChangeText {
		return nil, changeNotSupported(def.Type, change.Kind)
	}

	if strings.TrimSpace(change.Text) == "" {
		return nil, nil
	}

	var parsed any
	if err := json.Unmarshal([]byte(change.Text), &parsed); err != nil {
		return change.Text, nil
	}

	return parsed, nil
}

func (objectHandler) validate(def models.CustomFieldDefinition, value any) error {
	if value == nil {
		return nil
	}

	if text, ok := value.(string); ok {
		var parsed any
		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			return fmt.Errorf("%w: not valid JSON: %s", ErrInvalidValue, err.Error())
		}

		value = parsed
	}

	if len(def.Schema) == 0 {
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(def.Schema),
		gojsonschema.NewGoLoader(value),
	)
	if err != nil {
		return fmt.Errorf("%w: schema: %s", ErrInvalidValue, err.Error())
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		messages = append(messages, e.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidValue, strings.Join(messages, "; "))
}
