package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/solarops/internal/bpm"
	"github.com/five82/solarops/internal/listquery"
)

const sep = "  "

// renderHeader renders the title bar: collection name and notification state.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	name := ""
	if m.lister != nil {
		name = m.lister.Name()
	}
	parts := []string{
		styles.Logo.Render("solarops"),
		styles.AccentText.Render(name),
		m.notificationStatus(styles),
	}
	return styles.Header.Width(m.width).Render(strings.Join(parts, sep))
}

// notificationStatus summarises the poller's latest snapshot.
func (m Model) notificationStatus(styles Styles) string {
	snap := m.snapshot
	switch {
	case snap.IsOffline():
		return styles.DangerText.Bold(true).Render("OFFLINE") + sep +
			styles.WarningText.Render("retrying")
	case snap.LastError != nil:
		return styles.WarningText.Render("notifications: " + truncateMiddle(snap.LastError.Error(), 48))
	case !snap.HasData:
		return styles.MutedText.Render("checking notifications…")
	case snap.Unread > 0:
		return styles.StatusStyle("open").Render(fmt.Sprintf("%d unread", snap.Unread))
	}
	return styles.SuccessText.Render("no unread")
}

// renderToolbar shows the search input and the active view and sort.
func (m Model) renderToolbar() string {
	styles := m.theme.Styles()
	if m.searching {
		return m.input.View()
	}

	view := m.query.View
	if view == "" {
		view = listquery.ViewAll
	}
	parts := []string{
		styles.MutedText.Render("view") + " " + styles.StatusStyle(view).Render(view),
	}
	if m.query.SortBy != "" {
		parts = append(parts, styles.MutedText.Render("sort")+" "+
			styles.Text.Render(m.query.SortBy+" "+sortArrow(m.query.Sort)))
	}
	if m.query.Query != "" {
		parts = append(parts, styles.MutedText.Render("search")+" "+
			styles.AccentText.Render(fmt.Sprintf("%q", m.query.Query)))
	}
	return strings.Join(parts, sep)
}

// renderStatus shows paging, loading and error state under the table.
func (m Model) renderStatus() string {
	styles := m.theme.Styles()
	if m.err != nil {
		if errors.Is(m.err, bpm.ErrUnauthorized) {
			return styles.DangerText.Render("session expired: run `solarops login`")
		}
		return styles.DangerText.Render(truncateMiddle(m.err.Error(), max(m.width, 20)))
	}
	if m.loading && m.result.TotalCount == 0 {
		return styles.MutedText.Render("loading…")
	}

	pages := m.pages()
	page := m.query.Page + 1
	if pages == 0 {
		page = 0
	}
	status := fmt.Sprintf("page %d/%d", page, pages) + sep +
		fmt.Sprintf("%d %s", m.result.TotalCount, plural(m.result.TotalCount, "record", "records"))
	if m.loading {
		status += sep + "loading…"
	}
	return styles.MutedText.Render(status)
}

func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	return styles.Footer.Width(m.width).Render(m.help.ShortHelpView(m.keys.ShortHelp()))
}

func (m Model) renderHelp() string {
	styles := m.theme.Styles()
	title := styles.Logo.Render("solarops") + sep + styles.MutedText.Render("keys")
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		m.help.FullHelpView(m.keys.FullHelp()),
		"",
		styles.FaintText.Render("press any key to close"),
	)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// truncateMiddle shortens s to at most limit runes, eliding the middle.
func truncateMiddle(s string, limit int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if limit <= 0 || len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	head := (limit - 1) / 2
	tail := limit - 1 - head
	return string(r[:head]) + "…" + string(r[len(r)-tail:])
}
