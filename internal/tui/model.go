package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

type Screen string

const (
	ScreenReports Screen = "reports"
	ScreenParams  Screen = "params"
	ScreenResult  Screen = "result"
)

// Report is one entry of the report catalog as the browser shows it.
type Report struct {
	Number int
	Name   string
	Title  string
	Params []string
}

// Table is a rendered report result. Empty is shown instead of the table
// when there are no rows.
type Table struct {
	Headers []string
	Rows    [][]string
	Empty   string
}

type Client interface {
	Counts(ctx context.Context) (map[string]int64, error)
	RunReport(ctx context.Context, name string, args map[string]int64) (Table, error)
}

type Options struct {
	Client  Client
	Reports []Report
	// Tables orders the row counts in the header line.
	Tables []string
	IsTTY  func() bool
}

type Model struct {
	client Client
	tables []string

	screen Screen
	err    string

	reportsList list.Model
	paramInput  textinput.Model

	reportsByName map[string]Report
	selected      string
	pending       []string
	args          map[string]int64
	result        Table
	summary       string
}

type countsMsg struct {
	counts map[string]int64
	err    error
}

type resultMsg struct {
	name  string
	table Table
	err   error
}

func Run(ctx context.Context, opts Options) error {
	if opts.IsTTY != nil && !opts.IsTTY() {
		return fmt.Errorf("tui: requires a tty")
	}
	_, err := tea.NewProgram(NewModel(opts), tea.WithContext(ctx), tea.WithAltScreen()).Run()
	return err
}

func NewModel(opts Options) Model {
	paramInput := textinput.New()
	paramInput.CharLimit = 19

	items := make([]list.Item, 0, len(opts.Reports))
	byName := make(map[string]Report, len(opts.Reports))
	for _, report := range opts.Reports {
		description := report.Title
		if len(report.Params) > 0 {
			description += " (" + strings.Join(report.Params, ", ") + ")"
		}
		items = append(items, reportItem{
			number:      report.Number,
			name:        report.Name,
			description: description,
		})
		byName[report.Name] = report
	}

	reportsList := list.New(items, list.NewDefaultDelegate(), 0, 0)
	reportsList.Title = "Reports"
	reportsList.SetShowStatusBar(false)
	reportsList.SetFilteringEnabled(true)
	reportsList.SetShowHelp(false)
	reportsList.SetSize(80, 20)

	return Model{
		client:        opts.Client,
		tables:        opts.Tables,
		screen:        ScreenReports,
		reportsList:   reportsList,
		paramInput:    paramInput,
		reportsByName: byName,
		args:          map[string]int64{},
	}
}

func (m Model) Init() tea.Cmd {
	if m.client == nil {
		return nil
	}
	return func() tea.Msg {
		counts, err := m.client.Counts(context.Background())
		return countsMsg{counts: counts, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.screen != ScreenParams && !m.reportsList.SettingFilter() {
				return m, tea.Quit
			}
		}
	case tea.WindowSizeMsg:
		height := typed.Height - 4
		if height < 1 {
			height = 1
		}
		m.reportsList.SetSize(typed.Width, height)
	case countsMsg:
		if typed.err != nil {
			m.err = typed.err.Error()
			return m, nil
		}
		m.summary = m.formatCounts(typed.counts)
		return m, nil
	case resultMsg:
		if typed.err != nil {
			m.err = typed.err.Error()
			m.screen = ScreenReports
			return m, nil
		}
		m.err = ""
		m.result = typed.table
		m.screen = ScreenResult
		return m, nil
	}

	switch m.screen {
	case ScreenParams:
		return m.updateParams(msg)
	case ScreenResult:
		return m.updateResult(msg)
	default:
		return m.updateReports(msg)
	}
}

func (m Model) View() string {
	header := "Gradebook"
	if m.summary != "" {
		header += "  " + m.summary
	}
	header += "\n[enter] Run  [esc] Back  [/] Filter  [q] Quit\n"
	if m.err != "" {
		header += "Error: " + m.err + "\n"
	}

	switch m.screen {
	case ScreenParams:
		report := m.reportsByName[m.selected]
		return header + "\n" + report.Title + "\n\n" + paramLabel(m.pending[0]) + ": " + m.paramInput.View()
	case ScreenResult:
		report := m.reportsByName[m.selected]
		return header + "\n" + report.Title + "\n\n" + renderTable(m.result)
	default:
		if len(m.reportsList.Items()) == 0 {
			return header + "\nNo reports available."
		}
		return header + "\n" + m.reportsList.View()
	}
}

func (m Model) updateReports(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" && !m.reportsList.SettingFilter() {
		item, ok := m.reportsList.SelectedItem().(reportItem)
		if !ok {
			return m, nil
		}
		report := m.reportsByName[item.name]
		m.selected = report.Name
		m.args = map[string]int64{}
		m.pending = append([]string(nil), report.Params...)
		m.err = ""
		if len(m.pending) == 0 {
			return m, m.runCmd()
		}
		m.screen = ScreenParams
		m.paramInput.SetValue("")
		m.paramInput.Placeholder = paramLabel(m.pending[0])
		m.paramInput.Focus()
		return m, textinput.Blink
	}

	var cmd tea.Cmd
	m.reportsList, cmd = m.reportsList.Update(msg)
	return m, cmd
}

func (m Model) updateParams(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			m.screen = ScreenReports
			m.pending = nil
			m.paramInput.Blur()
			return m, nil
		case "enter":
			raw := strings.TrimSpace(m.paramInput.Value())
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id < 1 {
				m.err = fmt.Sprintf("%s must be a positive number", paramLabel(m.pending[0]))
				return m, nil
			}
			m.err = ""
			m.args[m.pending[0]] = id
			m.pending = m.pending[1:]
			m.paramInput.SetValue("")
			if len(m.pending) > 0 {
				m.paramInput.Placeholder = paramLabel(m.pending[0])
				return m, nil
			}
			m.paramInput.Blur()
			return m, m.runCmd()
		}
	}

	var cmd tea.Cmd
	m.paramInput, cmd = m.paramInput.Update(msg)
	return m, cmd
}

func (m Model) updateResult(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc", "enter", "backspace":
			m.screen = ScreenReports
			return m, nil
		}
	}
	return m, nil
}

func (m Model) runCmd() tea.Cmd {
	name := m.selected
	args := make(map[string]int64, len(m.args))
	for k, v := range m.args {
		args[k] = v
	}
	client := m.client
	return func() tea.Msg {
		if client == nil {
			return resultMsg{name: name, err: fmt.Errorf("no data source")}
		}
		result, err := client.RunReport(context.Background(), name, args)
		return resultMsg{name: name, table: result, err: err}
	}
}

func (m Model) formatCounts(counts map[string]int64) string {
	parts := make([]string, 0, len(counts))
	for _, name := range m.tables {
		if n, ok := counts[name]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d", name, n))
		}
	}
	return strings.Join(parts, " ")
}

func renderTable(t Table) string {
	if len(t.Rows) == 0 {
		if t.Empty != "" {
			return t.Empty
		}
		return "No rows."
	}
	cell := lipgloss.NewStyle().Padding(0, 1)
	header := cell.Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(t.Headers...).
		Rows(t.Rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		}).
		String()
}

func paramLabel(param string) string {
	if param == "" {
		return ""
	}
	return strings.ToUpper(param[:1]) + param[1:] + " id"
}

type reportItem struct {
	number      int
	name        string
	description string
}

func (i reportItem) Title() string       { return fmt.Sprintf("%d. %s", i.number, i.name) }
func (i reportItem) Description() string { return i.description }
func (i reportItem) FilterValue() string { return i.name + " " + i.description }
