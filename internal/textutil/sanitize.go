package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SanitizeFileName makes name safe as a single path component on the
// filesystems output trees are usually copied to.
//
// Separators, colons and asterisks become dashes; quotes, wildcards, pipes,
// angle brackets and control characters are dropped. Runs of whitespace
// collapse to one space, trailing dots are trimmed, and the result is NFC
// normalized so names decomposed by macOS match their composed form.
func SanitizeFileName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*':
			return '-'
		case '?', '"', '<', '>', '|':
			return -1
		}
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, norm.NFC.String(name))
	mapped = strings.Join(strings.Fields(mapped), " ")
	return strings.TrimRight(mapped, ". ")
}
