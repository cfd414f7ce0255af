package web_cache

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxFilenameRunes bounds the sanitized stem of a cached page.
const MaxFilenameRunes = 80

// MaxFilenameBytes bounds the stem in bytes so that the stem plus a
// "_<n>.html" suffix stays under NAME_MAX (255) for any script.
const MaxFilenameBytes = 200

// SafeFilename turns a page title into a file-name stem. Runs of characters
// that are illegal on common file systems (and control characters) become a
// single '_'; the result is trimmed of spaces and dots and never empty.
func SafeFilename(title string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = MaxFilenameRunes
	}
	var b strings.Builder
	inRun := false
	for _, r := range title {
		if forbidden(r) {
			if !inRun {
				b.WriteByte('_')
				inRun = true
			}
			continue
		}
		inRun = false
		b.WriteRune(r)
	}
	name := strings.Trim(strings.TrimSpace(b.String()), ".")
	if name == "" {
		return "page"
	}
	if runes := []rune(name); len(runes) > maxLen {
		name = string(runes[:maxLen])
	}
	if len(name) > MaxFilenameBytes {
		cut := MaxFilenameBytes
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return name
}

func forbidden(r rune) bool {
	switch r {
	case '\\', '/', ':', '*', '?', '"', '<', '>', '|':
		return true
	}
	return unicode.IsControl(r)
}
