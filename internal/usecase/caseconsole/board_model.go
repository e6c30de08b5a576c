package caseconsole

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"caseflow/internal/bootstrap/logging"
	"caseflow/internal/domain/casework"
	"caseflow/internal/ports"
	caseusecase "caseflow/internal/usecase/casework"
)

const maxShownLogs = 4
const maxAuditLines = 8

// CaseService is the part of the case service the board drives.
type CaseService interface {
	ListCases(ctx context.Context, filter ports.CaseFilter) ([]casework.Case, error)
	GetCaseDetail(ctx context.Context, caseID string) (caseusecase.CaseDetail, error)
	Accept(ctx context.Context, caseID string, actorID string) (casework.Case, error)
	Reject(ctx context.Context, caseID string, actorID string, reason string) (casework.Case, error)
	Report(ctx context.Context, caseID string, actor string) (casework.Case, error)
	EnterPaymentCycle(ctx context.Context, caseID string, actor string) (casework.Case, error)
	Cancel(ctx context.Context, caseID string, actor string, reason string) (casework.Case, error)
}

type BoardOptions struct {
	Operator        string
	StatusFilter    string
	AssigneeID      string
	RefreshInterval time.Duration
	// Changes, when set, refreshes the board as soon as a case moves.
	Changes <-chan ports.CaseChanged
}

type boardModel struct {
	ctx             context.Context
	service         CaseService
	operator        string
	statuses        []casework.Status
	assigneeID      string
	refreshInterval time.Duration
	changes         <-chan ports.CaseChanged

	cases         []casework.Case
	selectedIndex int
	detail        caseusecase.CaseDetail
	hasDetail     bool
	status        string
	auditLogs     []string
}

type casesLoadedMsg struct {
	items []casework.Case
	err   error
}

type caseDetailLoadedMsg struct {
	caseID string
	detail caseusecase.CaseDetail
	err    error
}

type tickMsg struct{}

type caseChangedMsg struct {
	change ports.CaseChanged
	ok     bool
}

type actionDoneMsg struct {
	action string
	caseID string
	result string
	err    error
}

func NewBoardModel(ctx context.Context, service CaseService, options BoardOptions) tea.Model {
	operator := strings.TrimSpace(options.Operator)
	if operator == "" {
		operator = "ops-console"
	}
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &boardModel{
		ctx:             logging.WithAttrs(ctx, slog.String("component", "usecase.caseconsole")),
		service:         service,
		operator:        operator,
		statuses:        parseStatusFilter(options.StatusFilter),
		assigneeID:      strings.TrimSpace(options.AssigneeID),
		refreshInterval: interval,
		changes:         options.Changes,
		status:          "loading",
	}
}

func (m *boardModel) Init() tea.Cmd {
	return tea.Batch(m.loadCasesCmd(), m.tickCmd(), m.waitForChangeCmd())
}

func (m *boardModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadCasesCmd(), m.tickCmd())
	case caseChangedMsg:
		if !msg.ok {
			m.changes = nil
			return m, nil
		}
		m.status = fmt.Sprintf("%s %s -> %s", msg.change.CaseNumber, msg.change.From, msg.change.To)
		return m, tea.Batch(m.loadCasesCmd(), m.waitForChangeCmd())
	case casesLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.cases = msg.items
		if len(m.cases) == 0 {
			m.selectedIndex = 0
			m.hasDetail = false
			m.status = "no cases"
			return m, nil
		}
		if m.selectedIndex >= len(m.cases) {
			m.selectedIndex = len(m.cases) - 1
		}
		return m, m.loadSelectedDetailCmd()
	case caseDetailLoadedMsg:
		if !m.isCurrentSelection(msg.caseID) {
			return m, nil
		}
		if msg.err != nil {
			m.hasDetail = false
			m.status = "detail failed: " + msg.err.Error()
			return m, nil
		}
		m.detail = msg.detail
		m.hasDetail = true
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		} else {
			m.status = fmt.Sprintf("%s done: %s", msg.action, msg.result)
		}
		m.appendAuditLog(msg.action, msg.caseID, msg.result, msg.err)
		return m, m.loadCasesCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadCasesCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				return m, m.loadSelectedDetailCmd()
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.cases)-1 {
				m.selectedIndex++
				return m, m.loadSelectedDetailCmd()
			}
			return m, nil
		case "a":
			return m, m.actionCmd("accept")
		case "r":
			return m, m.actionCmd("reject")
		case "p":
			return m, m.actionCmd("report")
		case "$":
			return m, m.actionCmd("enter_payment_cycle")
		case "x":
			return m, m.actionCmd("cancel")
		}
	}
	return m, nil
}

func (m *boardModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))
	reworkStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("208"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Case Board"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"operator=%s status=%s assignee=%s refresh=%s live=%t",
		m.operator,
		firstNonEmpty(joinStatuses(m.statuses), "all"),
		firstNonEmpty(m.assigneeID, "any"),
		m.refreshInterval,
		m.changes != nil,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Summary"))
	builder.WriteString("\n")
	builder.WriteString(summaryLine(m.cases))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Cases"))
	builder.WriteString("\n")
	if len(m.cases) == 0 {
		builder.WriteString(dimStyle.Render("- no cases"))
		builder.WriteString("\n\n")
	} else {
		for index, c := range m.cases {
			line := caseLine(c)
			if casework.IsReworkPath(c) && index != m.selectedIndex {
				line = reworkStyle.Render(line)
			}
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Detail"))
	builder.WriteString("\n")
	if !m.hasDetail {
		builder.WriteString(dimStyle.Render("- no detail"))
		builder.WriteString("\n\n")
	} else {
		m.writeDetail(&builder)
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Audit Log"))
	builder.WriteString("\n")
	if len(m.auditLogs) == 0 {
		builder.WriteString(dimStyle.Render("- no actions"))
		builder.WriteString("\n\n")
	} else {
		for _, line := range m.auditLogs {
			builder.WriteString("- " + line + "\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(dimStyle.Render("Keys: up/k down/j move  g refresh  a accept  r reject  p report  $ payment  x cancel  q quit"))
	return builder.String()
}

func (m *boardModel) writeDetail(builder *strings.Builder) {
	c := m.detail.Case
	builder.WriteString(fmt.Sprintf("Case: %s (%s)\n", c.CaseNumber, c.ID))
	builder.WriteString(fmt.Sprintf("Status: %s  since %s\n", c.Status, c.StatusUpdatedAt.Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Assignee: %s\n", assigneeLabel(c.Assignee)))
	if c.AcceptanceDeadline != nil {
		builder.WriteString(fmt.Sprintf("Acceptance deadline: %s\n", c.AcceptanceDeadline.Format(time.RFC3339)))
	}
	if m.detail.InRework {
		builder.WriteString("Rework: yes\n")
	}
	if c.PayoutAmount != nil {
		builder.WriteString(fmt.Sprintf("Payout: %s\n", c.PayoutAmount.StringFixed(2)))
	}
	builder.WriteString(fmt.Sprintf("Allowed: %s\n", joinEvents(m.detail.Allowed)))

	builder.WriteString("\nAllocations:\n")
	logs := m.detail.AllocationLogs
	if len(logs) == 0 {
		builder.WriteString("- none\n")
	} else {
		start := len(logs) - maxShownLogs
		if start < 0 {
			start = 0
		}
		for _, l := range logs[start:] {
			builder.WriteString(fmt.Sprintf("- %s %s %s\n", l.AllocatedAt.Format(time.RFC3339), assigneeLabel(&l.Assignee), l.Decision))
		}
	}
	if len(m.detail.QCReviews) > 0 {
		builder.WriteString("\nQC reviews:\n")
		for _, r := range m.detail.QCReviews {
			builder.WriteString(fmt.Sprintf("- %s %s by %s\n", r.ReviewedAt.Format(time.RFC3339), r.Result, r.ReviewerID))
		}
	}
	builder.WriteString("\n")
}

func (m *boardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *boardModel) waitForChangeCmd() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	changes := m.changes
	return func() tea.Msg {
		change, ok := <-changes
		return caseChangedMsg{change: change, ok: ok}
	}
}

func (m *boardModel) loadCasesCmd() tea.Cmd {
	filter := ports.CaseFilter{Statuses: m.statuses, AssigneeID: m.assigneeID}
	return func() tea.Msg {
		items, err := m.service.ListCases(m.ctx, filter)
		if err != nil {
			return casesLoadedMsg{err: err}
		}
		sortCases(items)
		return casesLoadedMsg{items: items}
	}
}

func (m *boardModel) loadSelectedDetailCmd() tea.Cmd {
	selected, ok := m.selectedCase()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		detail, err := m.service.GetCaseDetail(m.ctx, selected.ID)
		return caseDetailLoadedMsg{caseID: selected.ID, detail: detail, err: err}
	}
}

// actionCmd runs one lifecycle event against the selected case. Accept and
// reject are recorded on behalf of the current assignee.
func (m *boardModel) actionCmd(action string) tea.Cmd {
	selected, ok := m.selectedCase()
	if !ok {
		m.status = "no case selected"
		return nil
	}
	caseID := selected.ID
	onBehalf := ""
	if selected.Assignee != nil {
		onBehalf = selected.Assignee.ID
	}
	m.status = action + " running"

	return func() tea.Msg {
		var (
			c   casework.Case
			err error
		)
		switch action {
		case "accept":
			c, err = m.service.Accept(m.ctx, caseID, onBehalf)
		case "reject":
			c, err = m.service.Reject(m.ctx, caseID, onBehalf, "rejected from console by "+m.operator)
		case "report":
			c, err = m.service.Report(m.ctx, caseID, m.operator)
		case "enter_payment_cycle":
			c, err = m.service.EnterPaymentCycle(m.ctx, caseID, m.operator)
		case "cancel":
			c, err = m.service.Cancel(m.ctx, caseID, m.operator, "cancelled from console")
		default:
			err = fmt.Errorf("unknown action %q", action)
		}
		if err != nil {
			return actionDoneMsg{action: action, caseID: caseID, err: err}
		}
		return actionDoneMsg{action: action, caseID: caseID, result: string(c.Status)}
	}
}

func (m *boardModel) selectedCase() (casework.Case, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.cases) {
		return casework.Case{}, false
	}
	return m.cases[m.selectedIndex], true
}

func (m *boardModel) isCurrentSelection(caseID string) bool {
	selected, ok := m.selectedCase()
	return ok && selected.ID == caseID
}

func (m *boardModel) appendAuditLog(action string, caseID string, result string, opErr error) {
	outcome := strings.TrimSpace(result)
	if opErr != nil {
		outcome = "error: " + opErr.Error()
	}
	if outcome == "" {
		outcome = "ok"
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	line := fmt.Sprintf("%s operator=%s case=%s action=%s result=%s", timestamp, m.operator, caseID, action, outcome)
	m.auditLogs = append([]string{line}, m.auditLogs...)
	if len(m.auditLogs) > maxAuditLines {
		m.auditLogs = m.auditLogs[:maxAuditLines]
	}

	logging.Info(m.ctx, "case console action",
		slog.String("operator", m.operator),
		slog.String("case_id", caseID),
		slog.String("action", action),
		slog.String("result", outcome),
	)
}

// sortCases puts the oldest status change first so stuck cases surface.
func sortCases(items []casework.Case) {
	sort.SliceStable(items, func(i int, j int) bool {
		if items[i].StatusUpdatedAt.Equal(items[j].StatusUpdatedAt) {
			return items[i].CaseNumber < items[j].CaseNumber
		}
		return items[i].StatusUpdatedAt.Before(items[j].StatusUpdatedAt)
	})
}

func parseStatusFilter(input string) []casework.Status {
	var out []casework.Status
	for _, part := range strings.Split(input, ",") {
		status, err := casework.ParseStatus(part)
		if err != nil {
			continue
		}
		out = append(out, status)
	}
	return out
}

func summaryLine(cases []casework.Case) string {
	if len(cases) == 0 {
		return "- empty"
	}
	counts := make(map[casework.Status]int)
	for _, c := range cases {
		counts[c.Status]++
	}
	parts := make([]string, 0, len(counts))
	for _, status := range casework.Statuses() {
		if n := counts[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", status, n))
		}
	}
	return "- " + strings.Join(parts, " ")
}

func caseLine(c casework.Case) string {
	line := fmt.Sprintf("%s [%s] assignee=%s", c.CaseNumber, c.Status, assigneeLabel(c.Assignee))
	if casework.IsReworkPath(c) {
		line += " rework"
	}
	return line
}

func assigneeLabel(a *casework.Assignee) string {
	if a == nil {
		return "-"
	}
	if a.VendorID != "" && a.VendorID != a.ID {
		return fmt.Sprintf("%s:%s@%s", a.Type, a.ID, a.VendorID)
	}
	return fmt.Sprintf("%s:%s", a.Type, a.ID)
}

func joinStatuses(statuses []casework.Status) string {
	parts := make([]string, 0, len(statuses))
	for _, s := range statuses {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, ",")
}

func joinEvents(events []casework.EventType) string {
	if len(events) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(events))
	for _, e := range events {
		parts = append(parts, string(e))
	}
	return strings.Join(parts, ",")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		normalized := strings.TrimSpace(value)
		if normalized != "" {
			return normalized
		}
	}
	return ""
}
