package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// RenpyParser extracts dialogue, narration, and menu choices from Ren'Py
// script files, one entry per qualifying physical line. Code lines pass
// through untouched and are preserved verbatim for reconstruction.
type RenpyParser struct{}

func NewRenpyParser() *RenpyParser { return &RenpyParser{} }

func (p *RenpyParser) CanParse(ext string) bool {
	return ext == ".rpy" || ext == ".txt"
}

// renpyDialoguePattern matches an optional speaker identifier followed by
// a quoted string spanning the rest of the line:
//
//	e "Hello"    or    "Hello world"
//
// Go's regexp has no backreferences, so both quote characters are
// captured and compared afterwards.
var renpyDialoguePattern = regexp.MustCompile(`^(\s*)(?:([a-zA-Z0-9_]+)\s+)?(["'])(.*)(["'])$`)

// renpyChoicePattern matches a menu choice: a quoted string with a
// trailing colon.
//
//	"Yes, I will go." :
var renpyChoicePattern = regexp.MustCompile(`^(\s*)(["'])(.*)(["'])(\s*:)$`)

// renpyReservedWords are statement keywords that would otherwise be
// mistaken for a speaker when a code line happens to contain a quoted
// string (e.g. `show eileen "happy"`).
var renpyReservedWords = map[string]bool{
	"image":   true,
	"scene":   true,
	"show":    true,
	"play":    true,
	"stop":    true,
	"define":  true,
	"default": true,
	"return":  true,
	"jump":    true,
	"call":    true,
	"label":   true,
	"if":      true,
	"else":    true,
	"elif":    true,
	"while":   true,
	"$":       true,
}

// Parse scans the full script text and returns one entry per qualifying
// line, in source order. A preceding comment line is attached to the
// next extracted entry as its context label.
func (p *RenpyParser) Parse(content string) *File {
	lines := strings.Split(content, "\n")

	file := &File{
		Dialect:  DialectRenpy,
		RawLines: lines,
		Status:   FileLoaded,
	}

	lastContext := ""

	for idx, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "#") {
			lastContext = strings.TrimSpace(trimmed[1:])
			continue
		}
		if trimmed == "" {
			continue
		}

		// Choice first: it ends with a colon the dialogue shape rejects.
		if m := renpyChoicePattern.FindStringSubmatch(line); m != nil && m[2] == m[4] {
			if strings.TrimSpace(m[3]) == "" {
				continue
			}
			file.Entries = append(file.Entries, &Entry{
				ID:           strconv.Itoa(idx),
				OriginalText: m[3],
				Type:         TypeChoice,
				Speaker:      "Player",
				Status:       StatusPending,
				Context:      lastContext,
				LineIndex:    idx,
				Indent:       m[1],
				Quote:        m[2],
				Suffix:       m[5],
			})
			lastContext = ""
			continue
		}

		if m := renpyDialoguePattern.FindStringSubmatch(line); m != nil && m[3] == m[5] {
			speaker := m[2]
			if renpyReservedWords[speaker] {
				continue
			}
			if strings.TrimSpace(m[4]) == "" {
				continue
			}

			entryType := TypeNarration
			if speaker != "" {
				entryType = TypeDialogue
			}

			file.Entries = append(file.Entries, &Entry{
				ID:           strconv.Itoa(idx),
				OriginalText: m[4],
				Type:         entryType,
				Speaker:      speaker,
				Status:       StatusPending,
				Context:      lastContext,
				LineIndex:    idx,
				Indent:       m[1],
				Quote:        m[3],
			})
			lastContext = ""
		}
	}

	return file
}
