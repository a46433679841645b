package engine

import (
	"strings"
)

// Classifier decides the structural intent of an incoming message. The
// keyword implementation below is a policy detail; a model-backed
// classifier can be substituted without touching the state machine.
type Classifier interface {
	// IsAffirmative reports an explicit, unambiguous agreement.
	IsAffirmative(message string) bool
	// IsNegative reports a refusal or postponement.
	IsNegative(message string) bool
	// IsOfferInquiry reports that the user is asking about promos or discounts.
	IsOfferInquiry(message string) bool
}

// KeywordClassifier matches against fixed, case-insensitive vocabularies.
type KeywordClassifier struct {
	affirmatives []string
	negatives    []string
	inquiries    []string
}

// NewKeywordClassifier returns a classifier with the default vocabularies.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		affirmatives: []string{
			"yes", "yeah", "yep", "yup", "sure", "ok", "okay",
			"generate", "go ahead", "please do", "sige",
		},
		negatives: []string{
			"no", "nope", "nah", "not now", "no thanks", "no thank you",
			"later", "skip", "maybe next time",
		},
		inquiries: []string{
			"discount", "promo", "voucher", "offer", "code", "deal",
		},
	}
}

// IsAffirmative matches whole words so "yesterday" is not consent.
func (c *KeywordClassifier) IsAffirmative(message string) bool {
	return containsWord(message, c.affirmatives)
}

// IsNegative matches decline vocabulary. A message matching both
// vocabularies ("no, actually yes") resolves by the caller's precedence;
// the engine checks IsAffirmative first.
func (c *KeywordClassifier) IsNegative(message string) bool {
	return containsWord(message, c.negatives)
}

// IsOfferInquiry matches by substring: "discounts", "promos" and similar
// inflections all count.
func (c *KeywordClassifier) IsOfferInquiry(message string) bool {
	m := strings.ToLower(message)
	for _, kw := range c.inquiries {
		if strings.Contains(m, kw) {
			return true
		}
	}
	return false
}

func containsWord(message string, vocab []string) bool {
	m := strings.ToLower(message)
	words := strings.FieldsFunc(m, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	joined := " " + strings.Join(words, " ") + " "
	for _, v := range vocab {
		if strings.Contains(joined, " "+v+" ") {
			return true
		}
	}
	return false
}
