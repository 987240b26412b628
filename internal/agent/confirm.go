package agent

import "strings"

// ConfirmationDetector decides whether an assistant message with no
// tool calls is asking the user to sign off on the schema. Keyword
// matching on model output is fragile, so the heuristic lives behind
// this interface where a caller can swap in something better.
type ConfirmationDetector interface {
	IsConfirmationRequest(text string) bool
}

// confirmationKeywords are matched case-insensitively against the
// assistant's text.
var confirmationKeywords = []string{
	"does this",
	"look good",
	"confirm",
	"proceed?",
	"changes?",
}

// KeywordDetector is the default ConfirmationDetector.
type KeywordDetector struct {
	keywords []string
}

// NewKeywordDetector uses the default keyword list.
func NewKeywordDetector() *KeywordDetector {
	return &KeywordDetector{keywords: confirmationKeywords}
}

func (d *KeywordDetector) IsConfirmationRequest(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range d.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
