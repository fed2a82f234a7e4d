package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/uascope/uascope/pkg/diag"
)

// ---------------------------------------------------------------------------
// Shared styles
// ---------------------------------------------------------------------------

var (
	// titleStyle renders the application title bar.
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("25")).
			Padding(0, 1)

	// activeTabStyle renders the currently selected tab label.
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("25")).
			Padding(0, 2)

	// inactiveTabStyle renders unselected tab labels.
	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Padding(0, 2)

	// headerCellStyle is used for table column headers.
	headerCellStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			PaddingRight(1)

	// rowStyle is used for odd-numbered table rows.
	rowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			PaddingRight(1)

	// altRowStyle is used for even-numbered table rows (zebra striping).
	altRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Background(lipgloss.Color("236")).
			PaddingRight(1)

	// selectedRowStyle highlights the cursor row.
	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("25")).
				PaddingRight(1)

	// dimStyle is used for "no data" messages and hints.
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	// statusBarStyle renders the bottom status bar.
	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			PaddingLeft(1)

	// errorStyle renders error messages.
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")).
			Bold(true).
			PaddingLeft(1)

	// okStyle marks successful pipeline steps and good quality values.
	okStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2"))

	// warnStyle marks warnings.
	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3"))

	// badStyle marks failures and bad quality values.
	badStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1"))
)

// View renders the entire console to a string.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading…"
	}

	var sb strings.Builder

	title := titleStyle.Render("  uascope — OPC UA diagnostic console  ")
	sb.WriteString(title)
	sb.WriteString("\n")

	var tabParts []string
	for i, name := range m.tabs {
		label := fmt.Sprintf(" %d: %s ", i+1, name)
		if tab(i) == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
	}
	sb.WriteString(strings.Join(tabParts, ""))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("─", m.width))
	sb.WriteString("\n")

	contentHeight := m.height - 5 // title(1) + tabs(1) + divider(1) + status(2)
	if contentHeight < 1 {
		contentHeight = 1
	}
	content := clipLines(m.renderActiveTab(), contentHeight)
	sb.WriteString(content)
	sb.WriteString("\n")

	sb.WriteString(strings.Repeat("─", m.width))
	sb.WriteString("\n")
	sb.WriteString(m.renderStatus())

	return sb.String()
}

// renderActiveTab renders the content of the currently selected tab.
func (m Model) renderActiveTab() string {
	switch m.activeTab {
	case tabExplorer:
		return m.renderExplorer()
	case tabWatch:
		return m.renderWatch()
	case tabCrawl:
		return m.renderCrawl()
	case tabDiagnose:
		return m.renderDiagnose()
	case tabCerts:
		return m.renderCerts()
	default:
		return ""
	}
}

// renderStatus renders the bottom status bar line.
func (m Model) renderStatus() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	var parts []string
	if m.connected != "" {
		parts = append(parts, "session: "+m.connected)
	} else {
		parts = append(parts, "session: none")
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	parts = append(parts, "q: quit  tab: next tab")

	return statusBarStyle.Render(strings.Join(parts, "  |  "))
}

// renderExplorer shows either the connect form or the address space
// browser, depending on session state.
func (m Model) renderExplorer() string {
	if m.conn != connActive {
		return m.renderConnectForm()
	}

	var sb strings.Builder
	var names []string
	for _, c := range m.trail {
		names = append(names, c.name)
	}
	sb.WriteString(headerCellStyle.Render("Path: " + strings.Join(names, " / ")))
	sb.WriteString("\n\n")

	if m.browsing {
		sb.WriteString(dimStyle.Render("  browsing…"))
		return sb.String()
	}
	if len(m.children) == 0 {
		sb.WriteString(dimStyle.Render("  no child nodes"))
		sb.WriteString("\n\n")
		sb.WriteString(dimStyle.Render("  backspace: up  w: watch  r: refresh"))
		return sb.String()
	}

	header := fmt.Sprintf("  %-34s %-12s %-28s", "DISPLAY NAME", "CLASS", "NODE ID")
	sb.WriteString(headerCellStyle.Render(header))
	sb.WriteString("\n")
	for i, n := range m.children {
		marker := "  "
		if n.HasChildren {
			marker = "▸ "
		}
		line := fmt.Sprintf("%s%-34s %-12s %-28s", marker, truncate(n.DisplayName, 34), n.ClassName(), truncate(n.ID, 28))
		sb.WriteString(m.rowFor(i, line))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("  enter: open  backspace: up  w: watch  r: refresh  d: disconnect"))
	return sb.String()
}

// renderConnectForm shows the endpoint input and bookmark hint.
func (m Model) renderConnectForm() string {
	var sb strings.Builder
	state := "not connected"
	if m.conn == connConnecting {
		state = "connecting…"
	}
	sb.WriteString(dimStyle.Render("  " + state))
	sb.WriteString("\n\n")

	prompt := "  Endpoint: " + m.endpoint
	if m.editing {
		prompt += "▏"
		sb.WriteString(selectedRowStyle.Render(prompt))
	} else {
		sb.WriteString(rowStyle.Render(prompt))
	}
	sb.WriteString("\n")
	if m.cfg.Connection.SecurityPolicy != "" {
		sb.WriteString(rowStyle.Render(fmt.Sprintf("  Security: %s / %s", m.cfg.Connection.SecurityPolicy, m.cfg.Connection.SecurityMode)))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("  e: edit endpoint  enter: connect  b: next bookmark"))
	return sb.String()
}

// renderWatch shows the live watch list.
func (m Model) renderWatch() string {
	items := m.manager.Items()
	if len(items) == 0 {
		return dimStyle.Render("  watch list empty — press w on a node in the Explorer tab")
	}

	var sb strings.Builder
	header := fmt.Sprintf("  %-26s %-18s %-4s %-20s %-6s", "NAME", "VALUE", "Q", "TIMESTAMP", "TREND")
	sb.WriteString(headerCellStyle.Render(header))
	sb.WriteString("\n")
	for i, it := range items {
		trend := ""
		if it.ShowInTrend {
			trend = "on"
		} else if it.Trendable() {
			trend = "off"
		}
		quality := it.QualityMark()
		line := fmt.Sprintf("  %-26s %-18s %-4s %-20s %-6s",
			truncate(it.DisplayName, 26), truncate(it.ValueString(), 18), quality, it.TimestampString(), trend)
		if i == m.watchIndex {
			sb.WriteString(selectedRowStyle.Render(line))
		} else {
			sb.WriteString(m.rowFor(i, line))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("  u: unwatch  t: toggle trend  e: export csv"))
	return sb.String()
}

// renderCrawl shows crawl progress or its most recent result.
func (m Model) renderCrawl() string {
	var sb strings.Builder
	if m.crawlRunning {
		sb.WriteString(dimStyle.Render("  crawling… (esc to cancel)"))
		return sb.String()
	}
	if len(m.crawlNodes) == 0 {
		sb.WriteString(dimStyle.Render("  no crawl result — press x to crawl the address space"))
		return sb.String()
	}

	sb.WriteString(headerCellStyle.Render(fmt.Sprintf("  %d nodes discovered", len(m.crawlNodes))))
	sb.WriteString("\n\n")
	header := fmt.Sprintf("  %-34s %-12s %-28s", "DISPLAY NAME", "CLASS", "NODE ID")
	sb.WriteString(headerCellStyle.Render(header))
	sb.WriteString("\n")
	for i, n := range m.crawlNodes {
		line := fmt.Sprintf("  %-34s %-12s %-28s", truncate(n.DisplayName, 34), n.ClassName(), truncate(n.ID, 28))
		sb.WriteString(m.rowFor(i, line))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("  x: crawl again  e: export csv"))
	return sb.String()
}

// renderDiagnose shows the target input, streamed steps, and the
// terminal summary.
func (m Model) renderDiagnose() string {
	var sb strings.Builder
	prompt := "  Target: " + m.diagInput
	if m.diagEditing {
		prompt += "▏"
		sb.WriteString(selectedRowStyle.Render(prompt))
	} else {
		sb.WriteString(rowStyle.Render(prompt))
	}
	sb.WriteString("\n\n")

	for _, s := range m.diagSteps {
		sb.WriteString("  " + stepLine(s))
		sb.WriteString("\n")
	}

	if r := m.diagResult; r != nil {
		sb.WriteString("\n")
		if r.OverallSuccess {
			sb.WriteString(okStyle.Render(fmt.Sprintf("  reachable in %s", r.TotalDuration.Round(timeRound))))
			if r.RecommendedURL != "" {
				sb.WriteString("\n")
				sb.WriteString(okStyle.Render("  recommended endpoint: " + r.RecommendedURL))
			}
		} else {
			sb.WriteString(badStyle.Render(fmt.Sprintf("  diagnosis failed after %s", r.TotalDuration.Round(timeRound))))
		}
		sb.WriteString("\n")
	} else if m.task == taskDiagnose {
		sb.WriteString("\n")
		sb.WriteString(dimStyle.Render("  running… (esc to cancel)"))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("  e: edit target  enter: run"))
	return sb.String()
}

// renderCerts lists the trust store contents.
func (m Model) renderCerts() string {
	var sb strings.Builder
	sb.WriteString(headerCellStyle.Render("  Trusted certificates"))
	sb.WriteString("\n")
	if len(m.trusted) == 0 {
		sb.WriteString(dimStyle.Render("    none"))
		sb.WriteString("\n")
	}
	for i, c := range m.trusted {
		sb.WriteString(m.rowFor(i, "    "+c.Name))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(headerCellStyle.Render("  Rejected certificates"))
	sb.WriteString("\n")
	if len(m.rejected) == 0 {
		sb.WriteString(dimStyle.Render("    none"))
		sb.WriteString("\n")
	}
	for i, c := range m.rejected {
		sb.WriteString(m.rowFor(i, "    "+c.Name))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("  r: reload  (manage with: uascope cert)"))
	return sb.String()
}

// timeRound keeps displayed durations at millisecond precision.
const timeRound = time.Millisecond

// stepLine renders one pipeline step with a status glyph.
func stepLine(s diag.Step) string {
	var glyph string
	switch s.Status {
	case diag.StatusSuccess:
		glyph = okStyle.Render("✓")
	case diag.StatusWarning:
		glyph = warnStyle.Render("!")
	case diag.StatusFailed:
		glyph = badStyle.Render("✗")
	case diag.StatusRunning:
		glyph = dimStyle.Render("…")
	default:
		glyph = dimStyle.Render("·")
	}
	line := fmt.Sprintf("%s %-22s %s", glyph, s.Name, s.Details)
	if s.Duration > 0 {
		line += dimStyle.Render(fmt.Sprintf(" (%s)", s.Duration.Round(timeRound)))
	}
	return line
}

// rowFor applies cursor highlighting on the explorer and zebra striping
// elsewhere.
func (m Model) rowFor(i int, line string) string {
	if m.activeTab == tabExplorer && i == m.cursor {
		return selectedRowStyle.Render(line)
	}
	if i%2 == 1 {
		return altRowStyle.Render(line)
	}
	return rowStyle.Render(line)
}

// truncate shortens s to at most n runes, marking the cut. Slicing by
// runes keeps a multi-byte display name valid at the boundary.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// clipLines limits the string s to at most maxLines newline-delimited lines.
func clipLines(s string, maxLines int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= maxLines {
		return s
	}
	return strings.Join(lines[:maxLines], "\n")
}
