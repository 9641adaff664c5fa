package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/schoolatlas/schoolatlas/internal/domain"
	"github.com/schoolatlas/schoolatlas/internal/resolution"
)

type phase int

const (
	phaseChoice phase = iota
	phaseMember
)

// choiceItem pairs a reviewer choice with its prompt line.
type choiceItem struct {
	choice resolution.Choice
	label  string
}

var choiceItems = []choiceItem{
	{resolution.ChoiceIgnore, "Ignore - not the same schools, try the next district"},
	{resolution.ChoiceAddToDistrict, "Add to district - new member school of this district"},
	{resolution.ChoiceOverwrite, "Overwrite - replace a member school's values"},
	{resolution.ChoiceAppend, "Append - fill a member school's missing values"},
	{resolution.ChoiceOmit, "Omit - drop this candidate entirely"},
}

// model is the review screen. It walks two phases: picking a choice, then
// (for overwrite/append against several members) picking the member.
type model struct {
	view   resolution.ComparisonView
	styles Styles

	vp      viewport.Model
	width   int
	height  int
	ready   bool
	phase   phase
	cursor  int
	aborted bool
	done    bool

	decision resolution.Decision
}

func newModel(v resolution.ComparisonView) model {
	return model{
		view:   v,
		styles: DefaultStyles(),
		vp:     viewport.New(100, 24),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.Width = msg.Width
		// Reserve space for the header, menu, and help line.
		m.vp.Height = max(msg.Height-len(choiceItems)-6, 5)
		m.vp.SetContent(m.renderTable())
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.aborted = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < m.menuSize()-1 {
				m.cursor++
			}
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			return m, cmd
		case "enter":
			return m.confirm()
		}
	}
	return m, nil
}

func (m model) menuSize() int {
	if m.phase == phaseMember {
		return len(m.view.Members)
	}
	return len(choiceItems)
}

// confirm applies the current cursor. Overwrite and append against several
// members detour through member selection.
func (m model) confirm() (tea.Model, tea.Cmd) {
	if m.phase == phaseMember {
		m.decision.Member = m.view.Members[m.cursor]
		m.done = true
		return m, tea.Quit
	}

	item := choiceItems[m.cursor]
	m.decision = resolution.Decision{Choice: item.choice}

	needsMember := item.choice == resolution.ChoiceOverwrite || item.choice == resolution.ChoiceAppend
	if needsMember && len(m.view.Members) > 1 {
		m.phase = phaseMember
		m.cursor = 0
		return m, nil
	}
	m.done = true
	return m, tea.Quit
}

func (m model) View() string {
	if !m.ready {
		return "loading review..."
	}

	var b strings.Builder
	b.WriteString(m.styles.Header.Render(fmt.Sprintf(
		"Possible district match %d of %d: %s",
		m.view.Rank, m.view.Total, m.view.District.Name())))
	b.WriteString("\n")
	b.WriteString(m.styles.Subtle.Render(fmt.Sprintf(
		"Candidate %q from %s", displayName(m.view.Candidate), m.view.Org.Abbreviation)))
	b.WriteString("\n\n")
	b.WriteString(m.vp.View())
	b.WriteString("\n\n")

	if m.phase == phaseMember {
		b.WriteString(m.styles.Header.Render("Which member school?"))
		b.WriteString("\n")
		for i, member := range m.view.Members {
			b.WriteString(m.menuLine(i, member.School.DisplayName()))
		}
	} else {
		for i, item := range choiceItems {
			b.WriteString(m.menuLine(i, item.label))
		}
	}

	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("up/down move - enter confirm - pgup/pgdn scroll - esc abort"))
	return b.String()
}

func (m model) menuLine(i int, label string) string {
	if i == m.cursor {
		return m.styles.Cursor.Render("> "+label) + "\n"
	}
	return "  " + label + "\n"
}

// renderTable lays out one row per attribute where any column holds a
// value: the candidate's value, then each member's with its match level
// coloring. Rows beyond MaxRows are summarized.
func (m model) renderTable() string {
	var b strings.Builder

	header := []string{"attribute", "candidate"}
	for _, member := range m.view.Members {
		header = append(header, member.School.DisplayName())
	}
	b.WriteString(m.styles.AttrName.Render(m.row(header...)))
	b.WriteString("\n")

	rows := 0
	skipped := 0
	for _, a := range domain.Attributes() {
		cv := m.view.Candidate.Value(a)
		interesting := !domain.IsNullValue(cv)
		for _, member := range m.view.Members {
			if !domain.IsNullValue(member.School.Get(a)) {
				interesting = true
			}
		}
		if !interesting {
			continue
		}
		if m.view.MaxRows > 0 && rows >= m.view.MaxRows {
			skipped++
			continue
		}
		rows++

		cells := []string{
			m.styles.AttrName.Render(a.String()),
			m.styles.Cell.Render(formatValue(cv)),
		}
		for _, member := range m.view.Members {
			level := member.Levels[a]
			cells = append(cells, m.levelStyle(level).Render(
				fmt.Sprintf("%s [%s]", formatValue(member.School.Get(a)), level)))
		}
		b.WriteString(m.row(cells...))
		b.WriteString("\n")
	}
	if skipped > 0 {
		b.WriteString(m.styles.Subtle.Render(fmt.Sprintf("... %d more attributes not shown", skipped)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) row(cells ...string) string {
	return strings.Join(cells, "  |  ")
}

func (m model) levelStyle(level domain.MatchLevel) lipgloss.Style {
	switch level {
	case domain.LevelExact:
		return m.styles.Exact
	case domain.LevelIndicator:
		return m.styles.Indicator
	case domain.LevelRelated:
		return m.styles.Related
	default:
		return m.styles.None
	}
}

func displayName(rec *domain.SchoolRecord) string {
	if v, ok := rec.Value(domain.Name).(string); ok && v != "" {
		return v
	}
	return "(unnamed school)"
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case time.Time:
		return t.Format("2006-01-02")
	case string:
		if t == "" {
			return "-"
		}
		if len(t) > 40 {
			return t[:37] + "..."
		}
		return t
	default:
		return fmt.Sprint(v)
	}
}
