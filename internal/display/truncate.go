package display

import "unicode/utf8"

// Ellipsis is appended to text cut by Truncate
const Ellipsis = "..."

// Truncate limits text to maxLen characters. Text that is too long is cut
// and ends with Ellipsis so that the result is exactly maxLen characters.
// Limits shorter than the ellipsis cut the text without a marker.
func Truncate(text string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}

	runes := []rune(text)
	marker := []rune(Ellipsis)
	if maxLen < len(marker) {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-len(marker)]) + Ellipsis
}
