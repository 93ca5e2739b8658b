package embedding

import "strings"

// Normalize upper-cases text and collapses whitespace so identical product
// names always embed identically.
func Normalize(text string) string {
	return strings.ToUpper(strings.Join(strings.Fields(text), " "))
}
