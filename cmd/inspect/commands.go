package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"tink/domain"
	"tink/repositories"
	"tink/search"
)

const timeLayout = "2006-01-02 15:04"

var hatStyles = map[domain.Role]color.Style{
	domain.RoleProcess:    color.New(color.FgBlue, color.OpBold),
	domain.RoleFacts:      color.New(color.FgWhite, color.OpBold),
	domain.RoleEmotions:   color.New(color.FgRed, color.OpBold),
	domain.RoleCaution:    color.New(color.BgWhite, color.FgBlack, color.OpBold),
	domain.RoleBenefits:   color.New(color.FgYellow, color.OpBold),
	domain.RoleCreativity: color.New(color.FgGreen, color.OpBold),
}

type printer struct {
	out     io.Writer
	colours bool
}

func newPrinter(out io.Writer, colours bool) printer {
	return printer{out: out, colours: colours}
}

func (p printer) hat(role domain.Role, text string) string {
	style, ok := hatStyles[role]
	if !p.colours || !ok {
		return text
	}
	return style.Render(text)
}

func (p printer) title(text string) string {
	if !p.colours {
		return text
	}
	return color.New(color.OpBold, color.OpUnderscore).Render(text)
}

func (p printer) table(header []string, rows [][]string) {
	table := tablewriter.NewWriter(p.out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.AppendBulk(rows)
	table.Render()
}

func listSessions(db *badger.DB, log *slog.Logger, p printer) error {
	sessions, err := repositories.NewSessionRepository(db, log).ListSessions()
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		ended := ""
		if s.EndedAt != nil {
			ended = s.EndedAt.Format(timeLayout)
		}
		rows = append(rows, []string{
			s.ID, s.Title, s.State.String(),
			fmt.Sprintf("%d min", s.DurationMinutes),
			s.CreatedAt.Format(timeLayout), ended, string(s.EndReason),
		})
	}
	p.table([]string{"ID", "Title", "State", "Duration", "Created", "Ended", "Reason"}, rows)
	return nil
}

func searchSessions(ctx context.Context, blugePath string, args []string, p printer) error {
	reader, err := openIndex(blugePath)
	if err != nil {
		return fmt.Errorf("index opening failed: %w", err)
	}
	defer func() { _ = reader.Close() }()

	hits, err := search.Search(ctx, reader, search.NewQuery(strings.Join(args, " ")))
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(hits))
	for _, h := range hits {
		rows = append(rows, []string{h.SessionID, h.Title, h.State, h.CreatedAt.Format(timeLayout), fmt.Sprintf("%.2f", h.Score)})
	}
	p.table([]string{"ID", "Title", "State", "Created", "Score"}, rows)
	return nil
}

func showSummary(db *badger.DB, log *slog.Logger, sessionID string, markdown bool, p printer) error {
	session, err := repositories.NewSessionRepository(db, log).GetSession(sessionID)
	if err != nil {
		return err
	}
	summary, err := repositories.NewSummaryRepository(db, log).GetSummary(sessionID)
	if err != nil {
		return err
	}
	messages, err := repositories.NewMessageRepository(db, log, nil).GetAllMessages(sessionID)
	if err != nil {
		return err
	}
	participants := domain.CountParticipants(messages)

	if markdown {
		_, err = fmt.Fprint(p.out, domain.RenderSummaryMarkdown(session, summary, participants))
		return err
	}

	fmt.Fprintln(p.out, p.title(session.Title+" - Session Summary"))
	if session.Description != "" {
		fmt.Fprintln(p.out, session.Description)
	}
	fmt.Fprintf(p.out, "Date: %s  Participants: %d\n\n", summary.GeneratedAt.Format("2006-01-02"), participants)
	for _, role := range domain.AllRoles() {
		points := summary.PointsFor(role)
		if len(points) == 0 {
			continue
		}
		fmt.Fprintln(p.out, p.hat(role, " "+role.Hat()+" "))
		for _, point := range points {
			fmt.Fprintf(p.out, "  - %s\n", point)
		}
	}
	if len(summary.ActionPoints) > 0 {
		fmt.Fprintln(p.out, p.title("Action points"))
		for _, point := range summary.ActionPoints {
			fmt.Fprintf(p.out, "  - %s\n", point)
		}
	}
	return nil
}

func showMessages(db *badger.DB, log *slog.Logger, sessionID string, limit int, p printer) error {
	messages, _, err := repositories.NewMessageRepository(db, log, &limit).GetMessages(sessionID, nil)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(messages))
	for _, m := range messages {
		role := ""
		if m.Role != domain.RoleNone {
			role = p.hat(m.Role, m.Role.Color())
		}
		rows = append(rows, []string{m.CreatedAt.Format("15:04:05"), m.Sender, role, m.Language, m.Text})
	}
	p.table([]string{"At", "Sender", "Hat", "Lang", "Text"}, rows)
	return nil
}
