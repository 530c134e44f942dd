// Package fieldrender maps custom field definitions and values to editable
// controls and read-only displays. Each field type has exactly one handler;
// rendering is pure and never mutates its inputs.
package fieldrender

import (
	"errors"
	"fmt"

	"github.com/dukex/hireflow/pkg/customfields"
	"github.com/dukex/hireflow/pkg/models"
)

var (
	// ErrInvalidValue is returned when input cannot be coerced to the field's type.
	ErrInvalidValue = errors.New("invalid value")

	// ErrUnknownOption is returned when a select value is not one of the options.
	ErrUnknownOption = errors.New("value is not one of the field options")

	// ErrUnsupportedChange is returned when a change kind does not apply to the field type.
	ErrUnsupportedChange = errors.New("change not supported by field type")

	// ErrUnsupportedType is returned for a field type without a handler.
	ErrUnsupportedType = errors.New("unsupported field type")
)

// Widget names the input control a UI should draw.
type Widget string

const (
	WidgetText        Widget = "text"
	WidgetTextarea    Widget = "textarea"
	WidgetNumber      Widget = "number"
	WidgetDate        Widget = "date"
	WidgetSelect      Widget = "select"
	WidgetMultiselect Widget = "multiselect"
	WidgetCheckbox    Widget = "checkbox"
	WidgetURL         Widget = "url"
	WidgetJSON        Widget = "json"
)

// Control is the editable representation of one field.
type Control struct {
	Key      string               `json:"key"`
	Label    string               `json:"label"`
	Type     models.FieldType     `json:"type"`
	Widget   Widget               `json:"widget"`
	Required bool                 `json:"required"`
	Locked   bool                 `json:"locked,omitempty"`
	Value    any                  `json:"value"`
	Text     string               `json:"text"`
	Options  []models.FieldOption `json:"options,omitempty"`
	Selected []string             `json:"selected,omitempty"`
	Checked  bool                 `json:"checked,omitempty"`
	Unknown  bool                 `json:"unknown_value,omitempty"` // stored select value outside options
	Invalid  []string             `json:"errors,omitempty"`
}

// Display is the read-only representation of one field.
type Display struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Text  string `json:"text"`
	Unset bool   `json:"unset"`
}

// ChangeKind enumerates the edits a control can emit.
type ChangeKind string

const (
	ChangeText   ChangeKind = "text"   // new raw text for text, number, date, url, select, object
	ChangeToggle ChangeKind = "toggle" // add (On) or remove an option of a multiselect
	ChangeBool   ChangeKind = "bool"   // set a boolean explicitly
	ChangeClear  ChangeKind = "clear"  // remove the value
)

// Change is an edit emitted by a control.
type Change struct {
	Kind   ChangeKind `json:"kind"   validate:"required,oneof=text toggle bool clear"`
	Text   string     `json:"text,omitempty"`
	Option string     `json:"option,omitempty"`
	On     bool       `json:"on,omitempty"`
}

// handler is implemented once per field type.
type handler interface {
	widget() Widget
	fill(c *Control, def models.CustomFieldDefinition, value any)
	display(def models.CustomFieldDefinition, value any, loc Locale) (string, bool)
	apply(def models.CustomFieldDefinition, current any, change Change) (any, error)
	validate(def models.CustomFieldDefinition, value any) error
}

var handlers = map[models.FieldType]handler{
	models.FieldText:        textHandler{w: WidgetText},
	models.FieldTextarea:    textHandler{w: WidgetTextarea},
	models.FieldURL:         urlHandler{},
	models.FieldNumber:      numberHandler{},
	models.FieldDate:        dateHandler{},
	models.FieldSelect:      selectHandler{},
	models.FieldMultiselect: multiselectHandler{},
	models.FieldBoolean:     booleanHandler{},
	models.FieldObject:      objectHandler{},
}

func init() {
	for _, t := range models.FieldTypes() {
		if _, ok := handlers[t]; !ok {
			panic("fieldrender: no handler for field type " + string(t))
		}
	}
}

func handlerFor(t models.FieldType) (handler, error) {
	h, ok := handlers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, t)
	}

	return h, nil
}

// Input renders the editable control for res with the given value. The
// required flag follows the audience: admin forms use the admin
// requirement, candidate forms the candidate one.
func Input(res customfields.Resolution, value any, audience customfields.Audience) Control {
	def := res.Definition

	c := Control{
		Key:      def.Key,
		Label:    res.Label,
		Type:     def.Type,
		Required: res.AdminRequired,
	}

	if audience == customfields.AudienceCandidate {
		c.Required = res.CandidateRequired
	}

	h, err := handlerFor(def.Type)
	if err != nil {
		c.Widget = WidgetText
		c.Text = fmt.Sprint(value)
		c.Invalid = []string{err.Error()}

		return c
	}

	c.Widget = h.widget()
	h.fill(&c, def, value)

	if err := h.validate(def, value); err != nil {
		c.Invalid = append(c.Invalid, err.Error())
	}

	return c
}

// RenderDisplay renders the read-only form of value.
func RenderDisplay(def models.CustomFieldDefinition, value any, loc Locale) Display {
	d := Display{Key: def.Key, Label: def.Label}

	h, err := handlerFor(def.Type)
	if err != nil {
		d.Text = fmt.Sprint(value)
		d.Unset = value == nil

		return d
	}

	d.Text, d.Unset = h.display(def, value, loc)

	return d
}

// Apply returns the value that results from applying change to current.
// A nil result means the field is unset.
func Apply(def models.CustomFieldDefinition, current any, change Change) (any, error) {
	h, err := handlerFor(def.Type)
	if err != nil {
		return nil, err
	}

	if change.Kind == ChangeClear {
		return nil, nil
	}

	return h.apply(def, current, change)
}

// Validate checks a stored value against the field definition. Invalid
// values are still rendered; the error is shown next to the control.
func Validate(def models.CustomFieldDefinition, value any) error {
	h, err := handlerFor(def.Type)
	if err != nil {
		return err
	}

	if value == nil {
		return nil
	}

	return h.validate(def, value)
}

// Correction renders the controls for fields rejected by the server, with
// the server's messages attached.
func Correction(resolutions []customfields.Resolution, values map[string]any, errs models.FieldErrors) []Control {
	out := make([]Control, 0, len(errs))

	for _, res := range resolutions {
		messages, ok := errs[res.Definition.Key]
		if !ok {
			continue
		}

		c := Input(res, values[res.Definition.Key], customfields.AudienceAdmin)
		c.Invalid = append(c.Invalid, messages...)
		out = append(out, c)
	}

	return out
}
