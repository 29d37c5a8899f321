package filewalker

import (
	"os"
	"path/filepath"
	"testing"

	"script-translator/internal/parser"
)

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestWalkClassifiesDialects(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "script.rpy")
	writeFile(t, dir, "notes.txt")
	writeFile(t, dir, filepath.Join("data", "Map001.json"))
	writeFile(t, dir, "ignore.png")

	entries, err := NewWalker().Walk(dir)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 supported files, got %d", len(entries))
	}

	byName := map[string]FileEntry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	if byName["script.rpy"].Dialect != parser.DialectRenpy {
		t.Errorf(".rpy must map to the Ren'Py dialect")
	}
	if byName["notes.txt"].Dialect != parser.DialectRenpy {
		t.Errorf(".txt must map to the Ren'Py dialect")
	}
	if byName["Map001.json"].Dialect != parser.DialectRPGMaker {
		t.Errorf(".json must map to the RPG Maker dialect")
	}
}

func TestWalkSortsMapInfosFirst(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, filepath.Join("data", "Map001.json"))
	writeFile(t, dir, filepath.Join("data", "mapinfos.json"))
	writeFile(t, dir, "a.rpy")

	entries, err := NewWalker().Walk(dir)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	if len(entries) == 0 || !entries[0].IsMapInfos {
		t.Fatalf("MapInfos must sort first regardless of case, got %+v", entries)
	}
	for _, e := range entries[1:] {
		if e.IsMapInfos {
			t.Errorf("only one MapInfos entry expected in this layout")
		}
	}
}

func TestWalkRejectsNonDirectory(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "a.rpy")

	if _, err := NewWalker().Walk(file); err == nil {
		t.Fatalf("expected error for non-directory root")
	}
	if _, err := NewWalker().Walk(filepath.Join(dir, "missing")); err == nil {
		t.Fatalf("expected error for missing root")
	}
}
