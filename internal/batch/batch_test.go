package batch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"script-translator/internal/parser"
	"script-translator/internal/translation"
)

// fakeTranslator records requests and replies from a script keyed by a
// substring of the user prompt, or with a fixed response.
type fakeTranslator struct {
	mu       sync.Mutex
	requests []string
	respond  func(userPrompt string) (string, error)
}

func (f *fakeTranslator) Translate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, userPrompt)
	f.mu.Unlock()
	return f.respond(userPrompt)
}

func pendingEntries(texts ...string) []*parser.Entry {
	entries := make([]*parser.Entry, len(texts))
	for i, text := range texts {
		entries[i] = &parser.Entry{
			ID:           text,
			OriginalText: text,
			Status:       parser.StatusPending,
			LineIndex:    i,
		}
	}
	return entries
}

func TestRunMapsSegmentsByPosition(t *testing.T) {
	client := &fakeTranslator{respond: func(string) (string, error) {
		return "uno\n#####\ndos\n#####\ntres", nil
	}}
	p := New(client, translation.NewPromptBuilder(), 10, 1)

	entries := pendingEntries("one", "two", "three")
	summary := p.Run(context.Background(), entries, translation.PromptSpec{})

	if summary.Requested != 3 || summary.Done != 3 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	for i, want := range []string{"uno", "dos", "tres"} {
		if entries[i].TranslatedText != want {
			t.Errorf("entry %d: got %q, want %q", i, entries[i].TranslatedText, want)
		}
		if entries[i].Status != parser.StatusDone {
			t.Errorf("entry %d: status %s, want done", i, entries[i].Status)
		}
	}
}

func TestRunToleratesDelimiterWhitespace(t *testing.T) {
	client := &fakeTranslator{respond: func(string) (string, error) {
		return "uno   #####dos##### \n tres", nil
	}}
	p := New(client, translation.NewPromptBuilder(), 10, 1)

	entries := pendingEntries("one", "two", "three")
	summary := p.Run(context.Background(), entries, translation.PromptSpec{})

	if summary.Done != 3 {
		t.Fatalf("expected 3 done with sloppy delimiter spacing, got %+v", summary)
	}
	if entries[1].TranslatedText != "dos" {
		t.Errorf("middle segment: got %q", entries[1].TranslatedText)
	}
}

func TestRunMissingSegmentFailsTailEntries(t *testing.T) {
	client := &fakeTranslator{respond: func(string) (string, error) {
		return "uno\n#####\ndos", nil
	}}
	p := New(client, translation.NewPromptBuilder(), 10, 1)

	entries := pendingEntries("one", "two", "three")
	summary := p.Run(context.Background(), entries, translation.PromptSpec{})

	if summary.Done != 2 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if entries[0].Status != parser.StatusDone || entries[1].Status != parser.StatusDone {
		t.Errorf("entries with segments must keep their result")
	}
	if entries[2].Status != parser.StatusError {
		t.Errorf("entry without a segment must fail, got %s", entries[2].Status)
	}
	if entries[2].TranslatedText != "" {
		t.Errorf("failed entry must not get text, got %q", entries[2].TranslatedText)
	}
}

func TestRunEmptySegmentIsFailure(t *testing.T) {
	client := &fakeTranslator{respond: func(string) (string, error) {
		return "uno\n#####\n   \n#####\ntres", nil
	}}
	p := New(client, translation.NewPromptBuilder(), 10, 1)

	entries := pendingEntries("one", "two", "three")
	summary := p.Run(context.Background(), entries, translation.PromptSpec{})

	if summary.Done != 2 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if entries[1].Status != parser.StatusError {
		t.Errorf("blank segment must mark its entry as error, got %s", entries[1].Status)
	}
}

func TestRunChunkFailureIsIsolated(t *testing.T) {
	boom := errors.New("service unavailable")
	client := &fakeTranslator{respond: func(userPrompt string) (string, error) {
		if strings.Contains(userPrompt, "bad") {
			return "", boom
		}
		return "ok", nil
	}}
	// Chunk size 1 so each entry travels alone.
	p := New(client, translation.NewPromptBuilder(), 1, 1)

	entries := pendingEntries("good-one", "bad", "good-two")
	summary := p.Run(context.Background(), entries, translation.PromptSpec{})

	if summary.Done != 2 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.Errors) != 1 || !errors.Is(summary.Errors[0], boom) {
		t.Fatalf("expected the chunk error surfaced once, got %v", summary.Errors)
	}
	if entries[0].Status != parser.StatusDone || entries[2].Status != parser.StatusDone {
		t.Errorf("failing chunk must not affect the others")
	}
	if entries[1].Status != parser.StatusError {
		t.Errorf("failed chunk entries must be error, got %s", entries[1].Status)
	}
}

func TestRunSkipsNonPendingEntries(t *testing.T) {
	client := &fakeTranslator{respond: func(string) (string, error) {
		return "translated", nil
	}}
	p := New(client, translation.NewPromptBuilder(), 10, 1)

	doneEntry := &parser.Entry{OriginalText: "already", Status: parser.StatusDone, TranslatedText: "kept"}
	retryEntry := &parser.Entry{OriginalText: "retry me", Status: parser.StatusError}

	summary := p.Run(context.Background(), []*parser.Entry{doneEntry, retryEntry}, translation.PromptSpec{})

	if summary.Requested != 1 {
		t.Fatalf("only pending and error entries are eligible, requested %d", summary.Requested)
	}
	if doneEntry.TranslatedText != "kept" {
		t.Errorf("completed entry must be untouched, got %q", doneEntry.TranslatedText)
	}
	if retryEntry.Status != parser.StatusDone {
		t.Errorf("error entry must be retried, got %s", retryEntry.Status)
	}
}

func TestRunStripsSpeakerFrame(t *testing.T) {
	client := &fakeTranslator{respond: func(string) (string, error) {
		return "[Eileen]: こんにちは\n#####\n[Narrator]: 風が吹いた", nil
	}}
	p := New(client, translation.NewPromptBuilder(), 10, 1)

	entries := pendingEntries("Hello", "The wind blew")
	entries[0].Speaker = "Eileen"
	spec := translation.PromptSpec{SpeakerTagged: true}

	summary := p.Run(context.Background(), entries, spec)

	if summary.Done != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if entries[0].TranslatedText != "こんにちは" {
		t.Errorf("speaker frame not stripped: %q", entries[0].TranslatedText)
	}
	if entries[1].TranslatedText != "風が吹いた" {
		t.Errorf("narrator frame not stripped: %q", entries[1].TranslatedText)
	}
}

func TestRunSpeakerTaggedPayload(t *testing.T) {
	client := &fakeTranslator{respond: func(string) (string, error) {
		return "a\n#####\nb", nil
	}}
	p := New(client, translation.NewPromptBuilder(), 10, 1)

	entries := pendingEntries("Hello", "The wind blew")
	entries[0].Speaker = "e"

	p.Run(context.Background(), entries, translation.PromptSpec{SpeakerTagged: true})

	if len(client.requests) != 1 {
		t.Fatalf("expected a single request, got %d", len(client.requests))
	}
	req := client.requests[0]
	if !strings.Contains(req, "[e]: Hello") {
		t.Errorf("speaker frame missing from payload:\n%s", req)
	}
	if !strings.Contains(req, "[Narrator]: The wind blew") {
		t.Errorf("narrator frame missing from payload:\n%s", req)
	}
}

type upperTransform struct{}

func (upperTransform) Encode(text string) string { return strings.ReplaceAll(text, "secret", "[[DECODE_TARGET:X1]]") }
func (upperTransform) Restore(translated string) string {
	return strings.ReplaceAll(translated, "[[DECODE_TARGET:X1]]", "secret")
}

func TestRunAppliesTransform(t *testing.T) {
	client := &fakeTranslator{respond: func(userPrompt string) (string, error) {
		if strings.Contains(userPrompt, "secret") {
			t.Errorf("raw vocabulary leaked into the request:\n%s", userPrompt)
		}
		// The model echoes the code back undecoded.
		return "still [[DECODE_TARGET:X1]] here", nil
	}}
	p := New(client, translation.NewPromptBuilder(), 10, 1, WithTransform(upperTransform{}))

	entries := pendingEntries("a secret line")
	p.Run(context.Background(), entries, translation.PromptSpec{})

	if entries[0].TranslatedText != "still secret here" {
		t.Errorf("leftover code not restored: %q", entries[0].TranslatedText)
	}
}

type fixedHints struct{ hint string }

func (f fixedHints) Hint(ctx context.Context, payload string) string { return f.hint }

func TestRunIncludesHints(t *testing.T) {
	client := &fakeTranslator{respond: func(string) (string, error) {
		return "ok", nil
	}}
	p := New(client, translation.NewPromptBuilder(), 10, 1, WithHints(fixedHints{hint: "Past: foo → bar"}))

	p.Run(context.Background(), pendingEntries("one"), translation.PromptSpec{})

	if len(client.requests) != 1 || !strings.Contains(client.requests[0], "Past: foo → bar") {
		t.Errorf("hint missing from request: %v", client.requests)
	}
}

func TestRunCancelledContextFailsUnissuedChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeTranslator{respond: func(string) (string, error) {
		return "", ctx.Err()
	}}
	p := New(client, translation.NewPromptBuilder(), 1, 1)

	entries := pendingEntries("one", "two")
	summary := p.Run(ctx, entries, translation.PromptSpec{})

	if summary.Done != 0 {
		t.Fatalf("nothing should complete under a cancelled context: %+v", summary)
	}
	for i, e := range entries {
		if e.Status != parser.StatusError {
			t.Errorf("entry %d must end in error for retry, got %s", i, e.Status)
		}
	}
}
