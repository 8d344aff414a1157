package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

// DefaultSummaryMaxPoints caps the key points kept per hat.
const DefaultSummaryMaxPoints = 6

// Summary groups the distinct message texts of an ended session by hat.
// Points only holds hats that received at least one message.
type Summary struct {
	SessionID    string            `json:"session_id"`
	Points       map[Role][]string `json:"points"`
	ActionPoints []string          `json:"action_points,omitempty"`
	GeneratedAt  time.Time         `json:"generated_at"`
}

// BuildSummary keeps, for each hat, the first maxPoints distinct texts in
// message order. Messages posted without a hat are ignored.
func BuildSummary(sessionID string, messages []Message, maxPoints int, actionPoints []string, at time.Time) Summary {
	if maxPoints <= 0 {
		maxPoints = DefaultSummaryMaxPoints
	}
	points := make(map[Role][]string)
	for role, texts := range lo.GroupBy(
		lo.Filter(messages, func(m Message, _ int) bool { return m.Role.IsValid() }),
		func(m Message) Role { return m.Role },
	) {
		distinct := lo.Uniq(lo.Map(texts, func(m Message, _ int) string { return m.Text }))
		if len(distinct) > maxPoints {
			distinct = distinct[:maxPoints]
		}
		points[role] = distinct
	}
	return Summary{
		SessionID:    sessionID,
		Points:       points,
		ActionPoints: append([]string(nil), actionPoints...),
		GeneratedAt:  at.UTC(),
	}
}

// PointsFor returns the key points recorded for role, nil when none.
func (s Summary) PointsFor(role Role) []string {
	return s.Points[role]
}

// RenderSummaryMarkdown renders the summary as a Markdown document, hats in
// canonical order and empty hats omitted.
func RenderSummaryMarkdown(session Session, summary Summary, participants int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s - Session Summary\n\n", session.Title)
	if session.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", session.Description)
	}
	fmt.Fprintf(&b, "Date: %s\n", summary.GeneratedAt.Format("2006-01-02"))
	fmt.Fprintf(&b, "Participants: %d\n\n", participants)

	for _, role := range AllRoles() {
		points := summary.PointsFor(role)
		if len(points) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s Hat Key Points\n\n", strings.ToUpper(role.Color()[:1])+role.Color()[1:])
		for _, p := range points {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		b.WriteString("\n")
	}

	if len(summary.ActionPoints) > 0 {
		b.WriteString("## Action Points\n\n")
		for _, p := range summary.ActionPoints {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	return b.String()
}

// SummaryFileName derives a download name such as "water-bottle-summary.md".
func SummaryFileName(title string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(title), "-"))
	if slug == "" {
		slug = "session"
	}
	return slug + "-summary.md"
}

// CountParticipants counts the distinct participants who posted, the
// facilitator excluded.
func CountParticipants(messages []Message) int {
	return len(lo.Uniq(lo.FilterMap(messages, func(m Message, _ int) (string, bool) {
		return m.SenderID, !m.FromFacilitator()
	})))
}
