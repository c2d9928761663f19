// Package languages holds the fixed set of translation targets offered to the user.
package languages

import "strings"

// Supported lists the target languages the backend understands, in display order.
var Supported = []string{
	"English", "Spanish", "French", "German", "Chinese", "Japanese", "Korean",
	"Arabic", "Russian", "Portuguese", "Italian", "Hindi", "Bengali", "Punjabi",
	"Telugu", "Marathi", "Tamil", "Urdu", "Gujarati", "Kannada", "Malayalam",
}

// Filter returns the languages containing query as a case-insensitive substring, in list order.
// A blank query matches everything.
func Filter(query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]string, 0, len(Supported))
	for _, l := range Supported {
		if q == "" || strings.Contains(strings.ToLower(l), q) {
			out = append(out, l)
		}
	}
	return out
}

// Lookup returns the canonical spelling of name if it is supported.
func Lookup(name string) (string, bool) {
	n := strings.TrimSpace(name)
	for _, l := range Supported {
		if strings.EqualFold(l, n) {
			return l, true
		}
	}
	return "", false
}
