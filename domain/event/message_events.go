package event

import "tink/domain"

type MessagePosted struct {
	Base
	Message       domain.Message
	CensoredWords []string
}

type SummaryGenerated struct {
	Base
	Summary domain.Summary
}
