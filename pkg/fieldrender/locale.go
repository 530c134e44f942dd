package fieldrender

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// dateLayouts holds the display layout per base language.
var dateLayouts = map[string]string{
	"en": "Jan 2, 2006",
	"de": "02.01.2006",
	"fr": "02/01/2006",
	"es": "02/01/2006",
	"pt": "02/01/2006",
	"it": "02/01/2006",
	"nl": "02-01-2006",
	"ja": "2006/01/02",
}

// Locale formats numbers and dates for display.
type Locale struct {
	tag     language.Tag
	printer *message.Printer
	layout  string
}

// NewLocale parses a BCP 47 tag. Unparseable tags fall back to English.
func NewLocale(raw string) Locale {
	tag, err := language.Parse(raw)
	if err != nil || raw == "" {
		tag = language.English
	}

	base, _ := tag.Base()

	layout, ok := dateLayouts[base.String()]
	if !ok {
		layout = isoDate
	}

	return Locale{
		tag:     tag,
		printer: message.NewPrinter(tag),
		layout:  layout,
	}
}

// DefaultLocale is English.
func DefaultLocale() Locale {
	return NewLocale("en")
}

func (l Locale) Tag() language.Tag {
	return l.tag
}

// FormatNumber groups digits and keeps at most two fraction digits.
func (l Locale) FormatNumber(n float64) string {
	if l.printer == nil {
		l = DefaultLocale()
	}

	return l.printer.Sprint(number.Decimal(n, number.MaxFractionDigits(2)))
}

func (l Locale) FormatDate(d time.Time) string {
	if l.layout == "" {
		l = DefaultLocale()
	}

	return d.Format(l.layout)
}
