package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mono-send/send-smartly/pkg/editor"
	"github.com/mono-send/send-smartly/pkg/models"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#2E8B57"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}

func render(w io.Writer, s string) error {
	_, err := fmt.Fprintln(w, s)

	return err
}

func renderList(w io.Writer, list *models.WorkflowList) error {
	t := newTable("ID", "NAME", "STATUS", "STEPS", "DRAFT", "ACTIVE", "UNSAVED")

	for _, item := range list.Data {
		status := string(item.Status)
		if item.Status == models.WorkflowStatusActive {
			status = activeStyle.Render(status)
		}

		t.Row(
			item.ID,
			item.Name,
			status,
			strconv.Itoa(item.StepCount),
			strconv.Itoa(item.DraftVersion),
			optionalInt(item.ActiveVersion),
			strconv.FormatBool(item.HasUnsavedChanges),
		)
	}

	if err := render(w, t.String()); err != nil {
		return err
	}

	p := list.Pagination

	return render(w, mutedStyle.Render(fmt.Sprintf("page %d of %d, %d workflows", p.Page, p.TotalPages, p.Total)))
}

func renderWorkflow(w io.Writer, s *editor.Session) error {
	workflow := s.Workflow()
	settings := s.Settings()
	views := s.Views()

	var b strings.Builder

	fmt.Fprintf(&b, "%s  %s\n", headingStyle.Render(workflow.Name), mutedStyle.Render(workflow.ID))
	fmt.Fprintf(&b, "status: %s  draft: v%d  active: %s\n",
		workflow.Status, workflow.DraftVersion, optionalInt(workflow.ActiveVersion))
	fmt.Fprintf(&b, "trigger segment: %s  exit: %s  track opens: %t  track clicks: %t\n",
		orDash(settings.TriggerSegmentID), settings.Exit, settings.TrackOpens, settings.TrackClicks)

	if workflow.HasUnsavedChanges {
		b.WriteString("unsaved changes\n")
	}

	writeEmails(&b, "Main path", views.Main)

	if c := views.Condition; c != nil {
		fmt.Fprintf(&b, "\n%s %s evaluates %s\n", headingStyle.Render("Condition"), c.ConditionType, c.EvaluatedStepID)
		writeBranch(&b, models.BranchYes, c.YesBranch)
		writeBranch(&b, models.BranchNo, c.NoBranch)
		writeEmails(&b, "After the branches", views.Merged)
	}

	return render(w, strings.TrimRight(b.String(), "\n"))
}

func writeEmails(b *strings.Builder, title string, emails []models.EmailStep) {
	fmt.Fprintf(b, "\n%s\n", headingStyle.Render(title))

	if len(emails) == 0 {
		b.WriteString(mutedStyle.Render("  no emails") + "\n")

		return
	}

	for i, email := range emails {
		fmt.Fprintf(b, "  %d. wait %d %s, %q from %s  %s\n",
			i, email.WaitTime, email.WaitUnit, email.Subject, orDash(email.SenderEmail), mutedStyle.Render(email.ID))
	}
}

func writeBranch(b *strings.Builder, branch models.Branch, record models.BranchRecord) {
	if record.Email == nil {
		fmt.Fprintf(b, "  %s: %s\n", branch, mutedStyle.Render("empty"))

		return
	}

	fmt.Fprintf(b, "  %s: wait %d %s, %q  %s\n",
		branch, record.WaitTime, record.WaitUnit, record.Email.Subject, mutedStyle.Render(record.Email.ID))
}

func renderLookups(w io.Writer, lookups models.Lookups) error {
	segments := newTable("SEGMENT", "NAME", "CONTACTS")
	for _, s := range lookups.Segments {
		segments.Row(s.ID, s.Name, strconv.Itoa(s.ContactCount))
	}

	categories := newTable("CATEGORY", "NAME")
	for _, c := range lookups.Categories {
		categories.Row(c.ID, c.Name)
	}

	senders := newTable("SENDER", "NAME", "EMAIL")
	for _, s := range lookups.Senders {
		senders.Row(s.ID, s.Name, s.Email)
	}

	templates := newTable("TEMPLATE", "NAME", "SUBJECT")
	for _, t := range lookups.Templates {
		templates.Row(t.ID, t.Name, t.Subject)
	}

	return render(w, lipgloss.JoinVertical(lipgloss.Left,
		segments.String(), categories.String(), senders.String(), templates.String()))
}

func renderVersions(w io.Writer, versions []models.WorkflowVersion) error {
	t := newTable("VERSION", "NAME", "STEPS", "SAVED")

	for _, v := range versions {
		t.Row(
			strconv.Itoa(v.Number),
			v.Settings.Name,
			strconv.Itoa(len(v.Steps)),
			v.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}

	return render(w, t.String())
}

func optionalInt(i *int) string {
	if i == nil {
		return "-"
	}

	return strconv.Itoa(*i)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
