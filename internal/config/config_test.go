package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"CHUNK_SIZE", "WORKER_COUNT", "SAFETY_FILTERS", "SOURCE_LANG"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.ChunkSize != 15 {
		t.Errorf("default chunk size = %d, want 15", cfg.ChunkSize)
	}
	if cfg.WorkerCount != 8 {
		t.Errorf("default worker count = %d, want 8", cfg.WorkerCount)
	}
	if !cfg.SafetyFiltersEnabled {
		t.Errorf("safety filters must default on")
	}
	if cfg.MemoryEnabled {
		t.Errorf("translation memory must default off")
	}
	if cfg.SourceLang != "auto" {
		t.Errorf("default source language = %q, want auto", cfg.SourceLang)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "30")
	t.Setenv("SAFETY_FILTERS", "false")
	t.Setenv("TARGET_LANG", "en")

	cfg := Load()

	if cfg.ChunkSize != 30 {
		t.Errorf("chunk size override ignored: %d", cfg.ChunkSize)
	}
	if cfg.SafetyFiltersEnabled {
		t.Errorf("safety filter override ignored")
	}
	if cfg.TargetLang != "en" {
		t.Errorf("target language override ignored: %q", cfg.TargetLang)
	}
}

func TestLoadInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "not-a-number")
	t.Setenv("SAFETY_FILTERS", "maybe")

	cfg := Load()

	if cfg.ChunkSize != 15 {
		t.Errorf("unparsable int must fall back, got %d", cfg.ChunkSize)
	}
	if !cfg.SafetyFiltersEnabled {
		t.Errorf("unparsable bool must fall back")
	}
}
