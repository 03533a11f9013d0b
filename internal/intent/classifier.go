// Package intent classifies customer messages into business intents using a
// fixed, ordered rule table.
package intent

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/capitalize-ai/support-console/internal/model"
)

// Classifier maps free text to exactly one intent.
type Classifier struct {
	rules []Rule
}

// New creates a classifier with the default rule table.
func New() *Classifier {
	return NewWithRules(DefaultRules())
}

// NewWithRules creates a classifier with a custom rule table. Rules are
// evaluated in order and the first match wins.
func NewWithRules(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Rules returns the rule table in evaluation order.
func (c *Classifier) Rules() []Rule {
	return c.rules
}

// Classify returns the intent of text. It never fails: unmatched text yields
// the general intent with a low confidence.
func (c *Classifier) Classify(text string) model.Intent {
	normalized := Normalize(text)

	result := model.Intent{Type: model.IntentGeneral, Confidence: GeneralConfidence}
	for _, r := range c.rules {
		if r.match(normalized) {
			result = model.Intent{Type: r.Type, Confidence: r.Confidence}
			break
		}
	}

	result.ExtractedFields = extract(result.Type, text, normalized)
	return result
}

// Normalize lower-cases text and strips diacritics.
func Normalize(text string) string {
	// Transformers carry state, so build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		out = text
	}
	return strings.ToLower(out)
}
