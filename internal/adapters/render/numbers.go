package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatInt renders n with English thousands separators.
func FormatInt(n int64) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}

// FormatDelta renders n with an explicit sign, except for zero.
func FormatDelta(n int64) string {
	if n > 0 {
		return "+" + FormatInt(n)
	}
	return FormatInt(n)
}

// ShowDelta renders a table delta. Zero is hidden unless showZero is set.
func ShowDelta(n int64, showZero bool) string {
	if n == 0 && !showZero {
		return ""
	}
	return FormatDelta(n)
}

func showDeltaPtr(n *int64) string {
	if n == nil {
		return ""
	}
	return ShowDelta(*n, false)
}
