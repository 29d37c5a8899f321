package terminology

import (
	"fmt"
	"strings"
)

// Keyword is a do-not-translate term. Disabled keywords stay in storage
// but contribute nothing to the generated instruction.
type Keyword struct {
	ID      int64  `json:"id"`
	Value   string `json:"value"`
	Enabled bool   `json:"enabled"`
}

// ProperNoun is a forced-translation pair: Source must always be
// rendered as Translation.
type ProperNoun struct {
	ID          int64  `json:"id"`
	Source      string `json:"source"`
	Translation string `json:"translation"`
	Enabled     bool   `json:"enabled"`
}

// Rule is a free-text directive the model applies only when the
// characters or context it describes appear in the input.
type Rule struct {
	ID      int64  `json:"id"`
	Text    string `json:"text"`
	Enabled bool   `json:"enabled"`
}

// Set bundles the configured terminology for one translation request.
type Set struct {
	Keywords    []Keyword
	ProperNouns []ProperNoun
	Rules       []Rule
}

// TerminologyInstruction renders the keyword and proper-noun clauses.
// Returns "" when nothing is enabled.
func (s Set) TerminologyInstruction() string {
	var clauses []string

	var keywords []string
	for _, k := range s.Keywords {
		if k.Enabled {
			keywords = append(keywords, fmt.Sprintf("%q", k.Value))
		}
	}
	if len(keywords) > 0 {
		clauses = append(clauses, fmt.Sprintf(
			"- DO NOT TRANSLATE the following keywords. Keep them exactly as they are in the original text: %s.",
			strings.Join(keywords, ", ")))
	}

	var nouns []string
	for _, p := range s.ProperNouns {
		if p.Enabled {
			nouns = append(nouns, fmt.Sprintf("%q must be translated to %q", p.Source, p.Translation))
		}
	}
	if len(nouns) > 0 {
		clauses = append(clauses, fmt.Sprintf(
			"- ALWAYS TRANSLATE these proper nouns as specified: %s.",
			strings.Join(nouns, ", ")))
	}

	if len(clauses) == 0 {
		return ""
	}
	return "\n--- TERMINOLOGY RULES ---\nYou MUST strictly follow these rules:\n" +
		strings.Join(clauses, "\n")
}

// RulesInstruction renders the conditional free-text directives.
// Returns "" when no rule is enabled.
func (s Set) RulesInstruction() string {
	var active []string
	for _, r := range s.Rules {
		if r.Enabled {
			active = append(active, "- "+r.Text)
		}
	}
	if len(active) == 0 {
		return ""
	}
	return "\n--- CONTEXTUAL RULES ---\n" +
		"Before translating, you MUST analyze the user's input text against the following rules. " +
		"For each rule, if the characters or context it describes are present in the input text, " +
		"you MUST apply that rule to your translation. If a rule does not apply to the current text, " +
		"you must ignore it. The rules are:\n" +
		strings.Join(active, "\n")
}
