package batch

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"script-translator/internal/parser"
	"script-translator/internal/translation"
	"script-translator/internal/worker"

	"github.com/rs/zerolog/log"
)

// Translator is the text-in/text-out translation capability the
// protocol drives. Implemented by translation.GeminiClient.
type Translator interface {
	Translate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// TextTransform is an optional pre/post transform applied transparently
// around each service call (obfuscation of sensitive vocabulary).
type TextTransform interface {
	Encode(text string) string
	Restore(translated string) string
}

// HintProvider supplies an optional free-text context fragment for a
// chunk's payload (similar past translations from the memory store).
type HintProvider interface {
	Hint(ctx context.Context, payload string) string
}

// delimiterSplit tolerates whitespace around the delimiter, since the
// model rarely reproduces exact spacing.
var delimiterSplit = regexp.MustCompile(`\s*` + regexp.QuoteMeta(translation.Delimiter) + `\s*`)

// speakerFrame strips the "[Speaker]: " frame off a returned segment.
var speakerFrame = regexp.MustCompile(`(?s)^\[[^\]]*\]:\s*(.*)$`)

// Protocol chunks selected entries, packs each chunk into one request,
// and scatters the response segments back onto the entries by position.
type Protocol struct {
	client      Translator
	prompts     *translation.PromptBuilder
	chunkSize   int
	maxInFlight int
	transform   TextTransform
	hints       HintProvider
}

// Option configures optional protocol collaborators.
type Option func(*Protocol)

// WithTransform installs an obfuscation transform around every request.
func WithTransform(t TextTransform) Option {
	return func(p *Protocol) { p.transform = t }
}

// WithHints installs a context-hint provider.
func WithHints(h HintProvider) Option {
	return func(p *Protocol) { p.hints = h }
}

// New creates a protocol. chunkSize bounds entries per request;
// maxInFlight bounds concurrent requests.
func New(client Translator, prompts *translation.PromptBuilder, chunkSize, maxInFlight int, opts ...Option) *Protocol {
	if chunkSize <= 0 {
		chunkSize = 15
	}
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	p := &Protocol{
		client:      client,
		prompts:     prompts,
		chunkSize:   chunkSize,
		maxInFlight: maxInFlight,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Summary is the outcome of one Run, reported to the user as a single
// notification.
type Summary struct {
	Requested int
	Done      int
	Failed    int
	// Errors holds one error per failed chunk.
	Errors []error
}

// Run translates the selected entries. Only entries whose status is
// pending or error are taken; all taken entries are marked translating
// before any request is issued. Each chunk only ever mutates the
// entries it was given, so chunks may complete in any order, and one
// failed chunk never rolls back another.
func (p *Protocol) Run(ctx context.Context, selected []*parser.Entry, spec translation.PromptSpec) Summary {
	var eligible []*parser.Entry
	for _, e := range selected {
		if e.Status == parser.StatusPending || e.Status == parser.StatusError {
			eligible = append(eligible, e)
		}
	}

	summary := Summary{Requested: len(eligible)}
	if len(eligible) == 0 {
		return summary
	}

	for _, e := range eligible {
		e.Status = parser.StatusTranslating
	}

	systemPrompt := p.prompts.System(spec)
	chunks := worker.Chunk(eligible, p.chunkSize)

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, p.maxInFlight)
	)

	for idx, chunk := range chunks {
		select {
		case <-ctx.Done():
			// Entries never issued revert to error so a retry can
			// re-select them.
			for _, e := range chunks[idx] {
				e.Status = parser.StatusError
			}
			continue
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(chunkIdx int, entries []*parser.Entry) {
			defer wg.Done()
			defer func() { <-semaphore }()

			done, failed, err := p.translateChunk(ctx, entries, systemPrompt, spec)

			mu.Lock()
			summary.Done += done
			summary.Failed += failed
			if err != nil {
				summary.Errors = append(summary.Errors, err)
			}
			mu.Unlock()

			if err != nil {
				log.Error().Err(err).Int("chunk", chunkIdx+1).Int("entries", len(entries)).Msg("Chunk translation failed")
			} else {
				log.Info().Int("chunk", chunkIdx+1).Int("done", done).Int("failed", failed).Msg("Chunk translated")
			}
		}(idx, chunk)
	}

	wg.Wait()
	return summary
}

// translateChunk issues one request for one chunk and maps segments
// back to entries by position within the chunk.
func (p *Protocol) translateChunk(ctx context.Context, entries []*parser.Entry, systemPrompt string, spec translation.PromptSpec) (done, failed int, err error) {
	payload := p.buildPayload(entries, spec.SpeakerTagged)

	if p.transform != nil {
		payload = p.transform.Encode(payload)
	}

	extraContext := ""
	if p.hints != nil {
		extraContext = p.hints.Hint(ctx, entries[0].OriginalText)
	}

	response, err := p.client.Translate(ctx, systemPrompt, p.prompts.User(payload, extraContext))
	if err != nil {
		for _, e := range entries {
			e.Status = parser.StatusError
		}
		return 0, len(entries), err
	}

	if p.transform != nil {
		response = p.transform.Restore(response)
	}

	segments := delimiterSplit.Split(response, -1)

	for i, e := range entries {
		if i >= len(segments) {
			// The model dropped a delimiter; entries past the available
			// segments fail while earlier ones keep their result.
			e.Status = parser.StatusError
			failed++
			continue
		}

		segment := strings.TrimSpace(segments[i])
		if spec.SpeakerTagged {
			if m := speakerFrame.FindStringSubmatch(segment); m != nil {
				segment = strings.TrimSpace(m[1])
			}
		}

		if segment == "" {
			// An empty segment is a failed entry, not a valid empty
			// translation.
			e.Status = parser.StatusError
			failed++
			continue
		}

		e.TranslatedText = segment
		e.Status = parser.StatusDone
		done++
	}

	return done, failed, nil
}

// buildPayload joins the chunk's originals with the delimiter, in
// order. With speaker tagging each entry is framed as "[Speaker]: text"
// ("[Narrator]" when the entry has no speaker).
func (p *Protocol) buildPayload(entries []*parser.Entry, speakerTagged bool) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		if speakerTagged {
			speaker := e.Speaker
			if speaker == "" {
				speaker = "Narrator"
			}
			parts[i] = "[" + speaker + "]: " + e.OriginalText
		} else {
			parts[i] = e.OriginalText
		}
	}
	return strings.Join(parts, "\n"+translation.Delimiter+"\n")
}
