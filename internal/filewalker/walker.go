package filewalker

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"script-translator/internal/parser"

	"github.com/rs/zerolog/log"
)

// SupportedExtensions lists file types handled by the tool.
var SupportedExtensions = map[string]bool{
	".rpy":  true,
	".txt":  true,
	".json": true,
}

// FileEntry is one discovered file ready for processing.
type FileEntry struct {
	Path    string
	Name    string
	Dialect parser.Dialect
	// IsMapInfos marks the MapInfos.json side-table document, which must
	// be applied before any per-map file in the same batch is parsed.
	IsMapInfos bool
}

// Walker discovers script files under a root directory and classifies
// them by dialect.
type Walker struct{}

func NewWalker() *Walker { return &Walker{} }

// Walk discovers supported files under root. MapInfos documents sort
// first so the side table is populated before the maps that need it.
func (w *Walker) Walk(root string) ([]FileEntry, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root path: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", root)
	}

	var entries []FileEntry

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Error walking path")
			return nil
		}
		if info.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !SupportedExtensions[ext] {
			return nil
		}

		name := filepath.Base(path)
		entry := FileEntry{Path: path, Name: name}
		switch ext {
		case ".json":
			entry.Dialect = parser.DialectRPGMaker
			entry.IsMapInfos = strings.EqualFold(name, "MapInfos.json")
		default:
			entry.Dialect = parser.DialectRenpy
		}

		entries = append(entries, entry)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].IsMapInfos && !entries[j].IsMapInfos
	})

	log.Info().Int("count", len(entries)).Str("root", root).Msg("Discovered files")
	return entries, nil
}
