package search

import (
	"strconv"
	"strings"
)

const defaultLimit = 10

// Query is a parsed history search. It decouples the raw input typed by the
// facilitator from what the index needs.
type Query struct {
	RawInput string
	Terms    string // free text matched against title and description
	State    string // "inactive", "active", "paused" or "ended"
	Limit    int
}

// NewQuery parses command-line style input.
// Example: /find water bottle --state ended --limit 5
func NewQuery(input string) Query {
	query := Query{RawInput: input, Limit: defaultLimit}

	parts := strings.Fields(input)
	var textTerms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			key := strings.TrimPrefix(part, "--")
			val := parts[i+1]
			switch key {
			case "state":
				query.State = strings.ToLower(val)
			case "limit":
				if n, err := strconv.Atoi(val); err == nil && n > 0 {
					query.Limit = n
				}
			}
			i++
			continue
		}

		// Slash commands such as /find are not search terms
		if !strings.HasPrefix(part, "/") {
			textTerms = append(textTerms, part)
		}
	}

	query.Terms = strings.Join(textTerms, " ")
	return query
}
