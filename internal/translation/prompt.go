package translation

import (
	"fmt"
	"strings"

	"script-translator/internal/terminology"
)

// Format names the embedded control syntax the model must leave intact.
type Format string

const (
	FormatRenpy    Format = "renpy"
	FormatRPGMaker Format = "rpgmaker"
	FormatPlain    Format = "plain"
)

// PromptSpec is everything that shapes one request's system instruction.
type PromptSpec struct {
	SourceLang  string
	TargetLang  string
	Format      Format
	Terminology terminology.Set
	// SpeakerTagged switches on the [Speaker]: framing contract for
	// batch payloads whose entries carry character names.
	SpeakerTagged bool
	// DecodeKey, when non-empty, is the instruction for reversing the
	// obfuscation transform applied to the payload.
	DecodeKey string
}

// PromptBuilder assembles system instructions for translation requests.
type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

const baseRules = `You are a professional game localizer renowned for adapting scripts into natural, emotional, flowing prose. Your translations never sound robotic.

--- TRANSLATION RULES ---
1. Translate the text %s.
2. **Style:** The output must read like a polished novel in the target language. Prioritize natural flow and tone over literal accuracy.
3. **Context & Tone:** If a line is dialogue, keep the character's voice (cute, arrogant, shy, cold) and pick pronouns accordingly.
4. **Formatting:** Preserve the exact number of line breaks and all original formatting.
5. **Clean Output:** Your response MUST consist ONLY of the translated text. No notes, no explanations.`

const renpyFormatRules = `
6. **REN'PY CODE PRESERVATION (CRITICAL):**
   - Keep bracket variables exactly as they are: [player_name], [score].
   - Keep brace formatting tags exactly as they are: {i}, {/i}, {size=+10}, {w}.
   - Keep percent interpolation (%s-style) and control characters like \n and \" untouched.
   - Never translate file names or code fragments embedded in the text.`

const rpgMakerFormatRules = `
6. **RPG MAKER CODE PRESERVATION (CRITICAL):**
   - You MUST NOT translate or remove any control codes starting with a backslash.
   - Keep these EXACTLY as they are: \n<...>, \C[...], \I[...], \V[...], \., \|, \!, \^, \{, \}, \$, \#.
   - Example: "\n<Claire>Hello!" keeps "\n<Claire>" untouched; only "Hello!" is translated.
   - Keep each code in its relative position within the sentence.`

const batchContract = `
7. **BATCH TRANSLATION:** The input contains multiple segments separated by "` + Delimiter + `". Treat them as one continuous scene: translate each segment individually but keep the context flowing between them. Return the results separated by the same "` + Delimiter + `" delimiter, same count, same order.`

const speakerContract = `
8. **SPEAKER TAGS:** Each segment is framed as "[Speaker]: text" ("[Narrator]" for narration). Use the speaker to pick the right register, and return every segment with the same "[Speaker]: " frame.`

// System builds the full system instruction for a request.
func (pb *PromptBuilder) System(spec PromptSpec) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, baseRules, langClause(spec.SourceLang, spec.TargetLang))

	switch spec.Format {
	case FormatRenpy:
		sb.WriteString(renpyFormatRules)
	case FormatRPGMaker:
		sb.WriteString(rpgMakerFormatRules)
	}

	sb.WriteString(batchContract)
	if spec.SpeakerTagged {
		sb.WriteString(speakerContract)
	}

	if t := spec.Terminology.TerminologyInstruction(); t != "" {
		sb.WriteString("\n")
		sb.WriteString(t)
	}
	if r := spec.Terminology.RulesInstruction(); r != "" {
		sb.WriteString("\n")
		sb.WriteString(r)
	}
	if spec.DecodeKey != "" {
		sb.WriteString("\n")
		sb.WriteString(spec.DecodeKey)
	}

	return sb.String()
}

// User builds the user prompt: an optional free-text context hint
// followed by the payload itself.
func (pb *PromptBuilder) User(payload, extraContext string) string {
	if extraContext == "" {
		return payload
	}
	return extraContext + "\n\n" + payload
}

func langClause(sourceLang, targetLang string) string {
	if sourceLang == "" || sourceLang == "auto" {
		return fmt.Sprintf("to %s after automatically detecting the source language", targetLang)
	}
	return fmt.Sprintf("from %s to %s", sourceLang, targetLang)
}
