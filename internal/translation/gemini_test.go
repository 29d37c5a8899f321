package translation

import (
	"errors"
	"testing"
)

func TestSafetySettingsDisabled(t *testing.T) {
	settings := SafetyConfig{Enabled: false}.settings()

	if len(settings) != len(harmCategories) {
		t.Fatalf("expected one setting per category, got %d", len(settings))
	}
	for _, s := range settings {
		if s.Threshold != "BLOCK_NONE" {
			t.Errorf("category %s: expected BLOCK_NONE when disabled, got %s", s.Category, s.Threshold)
		}
	}
}

func TestSafetySettingsThresholdOverride(t *testing.T) {
	cfg := SafetyConfig{
		Enabled: true,
		Thresholds: map[string]string{
			"HARM_CATEGORY_HARASSMENT": "BLOCK_MEDIUM_AND_ABOVE",
		},
	}

	for _, s := range cfg.settings() {
		switch s.Category {
		case "HARM_CATEGORY_HARASSMENT":
			if s.Threshold != "BLOCK_MEDIUM_AND_ABOVE" {
				t.Errorf("override ignored: %s", s.Threshold)
			}
		default:
			if s.Threshold != "BLOCK_NONE" {
				t.Errorf("category %s without override must default to BLOCK_NONE, got %s", s.Category, s.Threshold)
			}
		}
	}
}

func TestExtractTextJoinsParts(t *testing.T) {
	resp := &geminiResponse{
		Candidates: []geminiCandidate{{
			Content: geminiContent{Parts: []geminiPart{{Text: "Hello "}, {Text: "world"}}},
		}},
	}

	text, err := extractText(resp)
	if err != nil {
		t.Fatalf("extractText failed: %v", err)
	}
	if text != "Hello world" {
		t.Errorf("got %q", text)
	}
}

func TestExtractTextClassifiesFailures(t *testing.T) {
	cases := []struct {
		name    string
		resp    *geminiResponse
		wantErr error
	}{
		{
			"truncated",
			&geminiResponse{Candidates: []geminiCandidate{{FinishReason: "MAX_TOKENS"}}},
			ErrTruncated,
		},
		{
			"safety finish reason",
			&geminiResponse{Candidates: []geminiCandidate{{FinishReason: "SAFETY"}}},
			ErrSafetyBlocked,
		},
		{
			"prompt blocked",
			&geminiResponse{PromptFeedback: &promptFeedback{BlockReason: "SAFETY"}},
			ErrSafetyBlocked,
		},
		{
			"no candidates",
			&geminiResponse{},
			ErrEmptyResponse,
		},
		{
			"empty candidate",
			&geminiResponse{Candidates: []geminiCandidate{{}}},
			ErrEmptyResponse,
		},
	}

	for _, tc := range cases {
		_, err := extractText(tc.resp)
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.wantErr)
		}
	}
}
