package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// RPG Maker MZ event command codes. Any other code is opaque and only
// acts as a text-block boundary.
const (
	codeShowTextSetup = 101
	codeShowTextLine  = 401
	codeShowChoices   = 102
)

// choiceTag marks a choice option inside a merged page entry so it
// stays distinguishable from narration after translation.
const choiceTag = "[Choice]"

// MapInfo is one record of the map-id → name side table, populated from
// a MapInfos.json document.
type MapInfo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// MapInfoTable resolves editor map names referenced only by numeric id
// inside per-map files. It accumulates across a whole session; later
// uploads overwrite earlier records for the same id.
type MapInfoTable struct {
	names map[int]MapInfo
}

func NewMapInfoTable() *MapInfoTable {
	return &MapInfoTable{names: make(map[int]MapInfo)}
}

// Merge parses a MapInfos.json document and folds its records into the
// table additively.
func (t *MapInfoTable) Merge(jsonContent []byte) error {
	var infos []*MapInfo
	if err := json.Unmarshal(jsonContent, &infos); err != nil {
		return fmt.Errorf("parse MapInfos document: %w", err)
	}
	for _, info := range infos {
		if info == nil || info.ID == 0 {
			continue
		}
		t.names[info.ID] = *info
	}
	return nil
}

// Name returns the editor name for a map id, or "" if unknown.
func (t *MapInfoTable) Name(id int) string {
	if t == nil {
		return ""
	}
	return t.names[id].Name
}

// Len reports how many maps the table knows about.
func (t *MapInfoTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

// RPGMakerParser walks map, common-event, and troop JSON documents and
// extracts show-text and show-choice content, merged per event page.
type RPGMakerParser struct {
	// MapInfos is the shared session side table; may be nil.
	MapInfos *MapInfoTable
}

func NewRPGMakerParser(infos *MapInfoTable) *RPGMakerParser {
	return &RPGMakerParser{MapInfos: infos}
}

func (p *RPGMakerParser) CanParse(ext string) bool {
	return ext == ".json"
}

// --- document shapes ---

type eventCommand struct {
	Code       int               `json:"code"`
	Parameters []json.RawMessage `json:"parameters"`
}

type eventPage struct {
	List []*eventCommand `json:"list"`
}

type mapDocument struct {
	DisplayName string      `json:"displayName"`
	Events      []*mapEvent `json:"events"`
}

type mapEvent struct {
	ID    *int        `json:"id"`
	Name  string      `json:"name"`
	Pages []eventPage `json:"pages"`
}

// listItem is one element of a CommonEvents or Troops root array: a
// common event carries a flat command list, a troop carries pages.
type listItem struct {
	ID    *int            `json:"id"`
	Name  string          `json:"name"`
	List  []*eventCommand `json:"list"`
	Pages []eventPage     `json:"pages"`
}

// --- tagged command model ---

type commandKind int

const (
	cmdOther commandKind = iota
	cmdShowTextSetup
	cmdShowTextLine
	cmdShowChoices
)

// command is the classified form of a raw event command: a finite set
// of recognized variants with their decoded payloads.
type command struct {
	kind    commandKind
	line    string
	choices []string
}

func classifyCommand(ec *eventCommand) command {
	if ec == nil {
		return command{kind: cmdOther}
	}
	switch ec.Code {
	case codeShowTextSetup:
		return command{kind: cmdShowTextSetup}
	case codeShowTextLine:
		var line string
		if len(ec.Parameters) > 0 {
			// Non-string payloads fall back to an empty line and are
			// dropped later by the empty-text filter.
			_ = json.Unmarshal(ec.Parameters[0], &line)
		}
		return command{kind: cmdShowTextLine, line: line}
	case codeShowChoices:
		var choices []string
		if len(ec.Parameters) > 0 {
			_ = json.Unmarshal(ec.Parameters[0], &choices)
		}
		return command{kind: cmdShowChoices, choices: choices}
	default:
		return command{kind: cmdOther}
	}
}

var mapFilePattern = regexp.MustCompile(`(?i)^Map(\d+)\.json$`)

// Parse decodes one RPG Maker MZ JSON document and returns a File whose
// entries each merge all text belonging to a single event page, common
// event, or troop page.
func (p *RPGMakerParser) Parse(jsonContent []byte, fileName string) (*File, error) {
	trimmed := strings.TrimLeftFunc(string(jsonContent), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\r' || r == '\n'
	})

	file := &File{
		Name:    fileName,
		Dialect: DialectRPGMaker,
		Status:  FileLoaded,
	}

	switch {
	case strings.HasPrefix(trimmed, "{"):
		var doc mapDocument
		if err := json.Unmarshal(jsonContent, &doc); err != nil {
			return nil, fmt.Errorf("parse map document %s: %w", fileName, err)
		}
		if doc.Events == nil {
			return nil, fmt.Errorf("unrecognized document shape in %s: no events array", fileName)
		}
		p.parseMap(file, &doc, fileName)

	case strings.HasPrefix(trimmed, "["):
		var items []*listItem
		if err := json.Unmarshal(jsonContent, &items); err != nil {
			return nil, fmt.Errorf("parse event document %s: %w", fileName, err)
		}
		p.parseItems(file, items)

	default:
		return nil, fmt.Errorf("unrecognized document shape in %s", fileName)
	}

	return file, nil
}

func (p *RPGMakerParser) parseMap(file *File, doc *mapDocument, fileName string) {
	mapLabel := p.mapContextLabel(doc.DisplayName, fileName)

	for eventIndex, event := range doc.Events {
		if event == nil {
			continue
		}
		eventID := eventIndex
		if event.ID != nil {
			eventID = *event.ID
		}
		eventName := event.Name
		if eventName == "" {
			eventName = fmt.Sprintf("EV%d", eventID)
		}
		eventLabel := fmt.Sprintf("%03d %s", eventID, eventName)

		for pageIndex, page := range event.Pages {
			idPrefix := fmt.Sprintf("Ev_%d_Pg_%d", eventID, pageIndex)
			p.processList(file, page.List, idPrefix, eventLabel, mapLabel)
		}
	}
}

func (p *RPGMakerParser) parseItems(file *File, items []*listItem) {
	for index, item := range items {
		if item == nil {
			continue
		}
		itemID := index
		if item.ID != nil {
			itemID = *item.ID
		}

		switch {
		case item.List != nil:
			name := item.Name
			if name == "" {
				name = fmt.Sprintf("CommonEvent%d", itemID)
			}
			label := fmt.Sprintf("Common %03d: %s", itemID, name)
			p.processList(file, item.List, fmt.Sprintf("Common_%d", itemID), label, "")

		case item.Pages != nil:
			name := item.Name
			if name == "" {
				name = fmt.Sprintf("Troop%d", itemID)
			}
			label := fmt.Sprintf("Troop %03d: %s", itemID, name)
			for pageIndex, page := range item.Pages {
				idPrefix := fmt.Sprintf("Troop_%d_Pg_%d", itemID, pageIndex)
				p.processList(file, page.List, idPrefix, label, "")
			}
		}
	}
}

// mapContextLabel combines the in-file display name with the editor
// name looked up by the numeric id in the filename. Preference:
// "editor (display)", then editor alone, then "Map (display)".
func (p *RPGMakerParser) mapContextLabel(displayName, fileName string) string {
	editorName := ""
	if m := mapFilePattern.FindStringSubmatch(fileName); m != nil {
		if id, err := strconv.Atoi(m[1]); err == nil {
			editorName = p.MapInfos.Name(id)
		}
	}

	switch {
	case editorName != "" && displayName != "":
		return fmt.Sprintf("%s (%s)", editorName, displayName)
	case editorName != "":
		return editorName
	case displayName != "":
		return fmt.Sprintf("Map (%s)", displayName)
	default:
		return ""
	}
}

// processList walks one command list and emits at most one merged entry
// for it. Consecutive show-text lines form one block; any other command
// closes the block; choice options join the page individually, tagged.
// Blocks are joined with a blank line so bubble boundaries survive
// translation.
func (p *RPGMakerParser) processList(file *File, list []*eventCommand, idPrefix, eventLabel, mapLabel string) {
	var pageParts []string
	var buffer []string

	flush := func() {
		if len(buffer) > 0 {
			pageParts = append(pageParts, strings.Join(buffer, "\n"))
			buffer = nil
		}
	}

	for _, raw := range list {
		cmd := classifyCommand(raw)
		switch cmd.kind {
		case cmdShowTextSetup:
			// Names embedded in the text (\n<...>) stay in the text;
			// no speaker extraction.
			flush()
		case cmdShowTextLine:
			buffer = append(buffer, cmd.line)
		case cmdShowChoices:
			flush()
			for _, choice := range cmd.choices {
				pageParts = append(pageParts, choiceTag+" "+choice)
			}
		default:
			flush()
		}
	}
	flush()

	if len(pageParts) == 0 {
		return
	}

	combined := strings.Join(pageParts, "\n\n")
	if strings.TrimSpace(combined) == "" {
		return
	}

	context := eventLabel
	if mapLabel != "" {
		context = fmt.Sprintf("[%s] %s", mapLabel, eventLabel)
	}

	file.Entries = append(file.Entries, &Entry{
		ID:           idPrefix + "_merged",
		OriginalText: combined,
		Type:         TypeDialogue,
		Status:       StatusPending,
		Context:      context,
		LineIndex:    -1,
	})
}

// ExportEntries serializes a file's entries as an indented JSON
// document for download. RPG Maker files are exported rather than
// rewritten in place.
func ExportEntries(file *File) ([]byte, error) {
	data, err := json.MarshalIndent(file.Entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export entries for %s: %w", file.Name, err)
	}
	return data, nil
}
