package parser

// EntryType classifies an extracted string.
type EntryType string

const (
	TypeDialogue  EntryType = "dialogue"
	TypeNarration EntryType = "narration"
	TypeChoice    EntryType = "choice"
	TypeOther     EntryType = "other"
)

// Status is the translation lifecycle state of an entry.
// pending → translating → (done | error); error entries may re-enter
// translating on a retry.
type Status string

const (
	StatusPending     Status = "pending"
	StatusTranslating Status = "translating"
	StatusDone        Status = "done"
	StatusError       Status = "error"
)

// Entry is one extractable unit of translatable text.
type Entry struct {
	// ID is stable and unique within a file: the zero-based source line
	// index for Ren'Py, a composite event/page path with a merged
	// suffix for RPG Maker. Re-parsing the same file yields the same IDs.
	ID             string    `json:"id"`
	OriginalText   string    `json:"originalText"`
	TranslatedText string    `json:"translatedText"`
	Type           EntryType `json:"type"`
	// Speaker is the character identifier; empty means narration.
	Speaker string `json:"speaker,omitempty"`
	Status  Status `json:"status"`
	// Context is a human-readable location label (map/event name, or the
	// preceding script comment). Display and optional translator hint only.
	Context string `json:"context,omitempty"`

	// Ren'Py reconstruction metadata, recorded exactly as found so the
	// line can be rebuilt byte-faithfully around the new text.
	// LineIndex is -1 for entries with no line position (RPG Maker).
	LineIndex int    `json:"lineIndex"`
	Indent    string `json:"-"`
	Quote     string `json:"-"`
	// Suffix is whatever followed the closing quote (a choice's colon).
	Suffix string `json:"-"`
}

// FileStatus is the overall state of a loaded file.
type FileStatus string

const (
	FileLoaded     FileStatus = "loaded"
	FileProcessing FileStatus = "processing"
	FileDone       FileStatus = "done"
)

// Dialect identifies which parser produced a file's entries.
type Dialect string

const (
	DialectRenpy    Dialect = "renpy"
	DialectRPGMaker Dialect = "rpgmaker"
)

// File is one uploaded source file with its extracted entries and the
// raw content needed for reconstruction.
type File struct {
	Name     string     `json:"fileName"`
	Dialect  Dialect    `json:"dialect"`
	RawLines []string   `json:"-"`
	Entries  []*Entry   `json:"entries"`
	Status   FileStatus `json:"status"`
}

// Pending returns the entries eligible for (re-)translation.
func (f *File) Pending() []*Entry {
	var out []*Entry
	for _, e := range f.Entries {
		if e.Status == StatusPending || e.Status == StatusError {
			out = append(out, e)
		}
	}
	return out
}

// Entry looks up an entry by its stable ID.
func (f *File) Entry(id string) *Entry {
	for _, e := range f.Entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}
