package moderation

import "github.com/abadojack/whatlanggo"

// LanguageDetector tags messages with an ISO 639-1 code.
type LanguageDetector struct{}

func NewLanguageDetector() LanguageDetector { return LanguageDetector{} }

// Detect returns "" when the text is too short or ambiguous to call.
func (LanguageDetector) Detect(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}
