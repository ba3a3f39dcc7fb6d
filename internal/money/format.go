package money

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultLocale groups digits the Indian way (12,34,567.89).
var DefaultLocale = language.MustParse("en-IN")

// Format renders the amount with locale digit grouping and two decimals.
// Presentation only.
func (m Money) Format(tag language.Tag) string {
	p := message.NewPrinter(tag)
	return p.Sprint(number.Decimal(m.Float64(), number.Scale(Scale)))
}

// ParseLocale resolves a BCP 47 tag, falling back to DefaultLocale.
func ParseLocale(s string) language.Tag {
	if s == "" {
		return DefaultLocale
	}
	tag, err := language.Parse(s)
	if err != nil {
		return DefaultLocale
	}
	return tag
}
