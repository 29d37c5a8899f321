package parser

import (
	"fmt"
	"strings"
)

// RewriteScript substitutes completed translations back into a copy of
// the file's raw line array. Every untouched line passes through
// byte-identical; a rewritten line re-emits the original indentation,
// speaker prefix, quote character, and suffix around the translated
// text, with internal quote characters escaped.
func RewriteScript(file *File) string {
	lines := make([]string, len(file.RawLines))
	copy(lines, file.RawLines)

	for _, e := range file.Entries {
		if e.Status != StatusDone || strings.TrimSpace(e.TranslatedText) == "" {
			continue
		}
		if e.LineIndex < 0 || e.LineIndex >= len(lines) {
			continue
		}

		var sb strings.Builder
		sb.WriteString(e.Indent)
		if e.Speaker != "" && e.Type != TypeChoice {
			sb.WriteString(e.Speaker)
			sb.WriteString(" ")
		}
		sb.WriteString(e.Quote)
		sb.WriteString(escapeQuote(e.TranslatedText, e.Quote))
		sb.WriteString(e.Quote)
		sb.WriteString(e.Suffix)

		lines[e.LineIndex] = sb.String()
	}

	return strings.Join(lines, "\n")
}

// TranslationFile renders the completed entries as a Ren'Py translation
// file: per entry a comment with the 1-based source line, the optional
// context, then old/new lines. Incomplete entries are skipped entirely.
func TranslationFile(file *File) string {
	var sb strings.Builder
	sb.WriteString("# Generated translation file\n\n")

	for _, e := range file.Entries {
		if e.Status != StatusDone || strings.TrimSpace(e.TranslatedText) == "" {
			continue
		}

		fmt.Fprintf(&sb, "# Line %d\n", e.LineIndex+1)
		if e.Context != "" {
			fmt.Fprintf(&sb, "# Context: %s\n", e.Context)
		}
		fmt.Fprintf(&sb, "old \"%s\"\n", escapeQuote(e.OriginalText, `"`))
		fmt.Fprintf(&sb, "new \"%s\"\n\n", escapeQuote(e.TranslatedText, `"`))
	}

	return sb.String()
}

// escapeQuote escapes unescaped occurrences of the quote character so a
// translated string cannot terminate its enclosing literal early.
func escapeQuote(s, quote string) string {
	var sb strings.Builder
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case string(r) == quote:
			sb.WriteString("\\")
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
