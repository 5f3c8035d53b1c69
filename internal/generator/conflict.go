package generator

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

// TargetResolution represents what to do with a target that already has
// content
type TargetResolution int

const (
	Keep TargetResolution = iota
	Replace
	ShowChanges
	Cancel
)

// Resolver decides what happens when the target directory is not empty
type Resolver struct {
	strategy TargetStrategy
}

// TargetStrategy determines how to resolve an occupied target
type TargetStrategy interface {
	Resolve(summary *Summary) (TargetResolution, error)
}

// Styles shared by the occupied-target menu and the diff viewer.
var (
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("yellow")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("cyan")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	borderStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("white")).Bold(true)
	addedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("green"))
	replacedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("yellow"))
	removedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("red"))
)

// NewResolver creates a resolver for the given flags. overwrite always
// replaces; otherwise the user is asked when interactive is set and stdin
// is a terminal, and the target is kept in every other case.
func NewResolver(overwrite, interactive bool) *Resolver {
	return &Resolver{strategy: selectStrategy(overwrite, interactive && IsTerminal())}
}

// NewResolverWithStrategy creates a resolver with an explicit strategy.
func NewResolverWithStrategy(s TargetStrategy) *Resolver {
	return &Resolver{strategy: s}
}

// ResolveTarget determines what to do with an occupied target.
// The strategy decides; the summary is what gets shown to the user.
func (r *Resolver) ResolveTarget(summary *Summary) (TargetResolution, error) {
	return r.strategy.Resolve(summary)
}

// IsTerminal reports whether stdin and stdout are attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// selectStrategy maps the overwrite flag and terminal state to a strategy.
func selectStrategy(overwrite, interactive bool) TargetStrategy {
	switch {
	case overwrite:
		return &ForceStrategy{}
	case interactive:
		return &InteractiveStrategy{}
	default:
		return &KeepStrategy{}
	}
}

// ForceStrategy always returns Replace (no prompts)
type ForceStrategy struct{}

// Resolve always returns Replace for overwrite mode
func (s *ForceStrategy) Resolve(*Summary) (TargetResolution, error) {
	return Replace, nil
}

// KeepStrategy always returns Keep (no prompts)
type KeepStrategy struct{}

// Resolve always returns Keep for non-interactive runs
func (s *KeepStrategy) Resolve(*Summary) (TargetResolution, error) {
	return Keep, nil
}

// InteractiveStrategy shows a menu with keyboard navigation.
// Choosing "Show changes" opens the summary viewer and then returns to the
// menu, so the changes can be reviewed before deciding.
type InteractiveStrategy struct{}

// Resolve shows the interactive menu and returns the user's choice.
func (s *InteractiveStrategy) Resolve(summary *Summary) (TargetResolution, error) {
	for {
		p := tea.NewProgram(newTargetMenuModel(summary))
		finalModel, err := p.Run()
		if err != nil {
			return Cancel, fmt.Errorf("failed to show menu: %w", err)
		}

		result := finalModel.(targetMenuModel)
		if result.selected == nil {
			return Cancel, nil
		}
		if *result.selected != ShowChanges {
			return *result.selected, nil
		}

		viewer := tea.NewProgram(newSummaryViewerModel(summary), tea.WithAltScreen())
		if _, err := viewer.Run(); err != nil {
			return Cancel, fmt.Errorf("failed to show changes: %w", err)
		}
	}
}

// targetMenuModel is the BubbleTea model for the target menu
type targetMenuModel struct {
	summary  *Summary
	info     os.FileInfo
	choices  []string
	cursor   int
	selected *TargetResolution
}

func newTargetMenuModel(summary *Summary) targetMenuModel {
	info, _ := os.Stat(summary.Target)
	return targetMenuModel{
		summary: summary,
		info:    info,
		choices: []string{
			"Show changes and decide",
			"Keep existing directory (abort)",
			"Replace directory with generated project",
			"Cancel operation",
		},
	}
}

// Init starts the menu with no pending command.
func (m targetMenuModel) Init() tea.Cmd {
	return nil
}

// Update moves the cursor and records the chosen resolution.
func (m targetMenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.choices)-1 {
				m.cursor++
			}

		case "enter":
			resolution := mapChoiceToResolution(m.cursor)
			m.selected = &resolution
			return m, tea.Quit
		}
	}

	return m, nil
}

// View renders the menu
func (m targetMenuModel) View() string {
	var b strings.Builder

	b.WriteString(warningStyle.Render("⚠️  Target is not empty: ") + titleStyle.Render(m.summary.Target) + "\n")

	if m.info != nil {
		b.WriteString(mutedStyle.Render("    Last modified: ") + humanize.Time(m.info.ModTime()) + "\n")
	}
	b.WriteString(mutedStyle.Render("    Changes: ") + m.summary.Headline() + "\n")

	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("    [↑/↓] Navigate    [Enter] Select    [q] Cancel") + "\n\n")

	for i, choice := range m.choices {
		if m.cursor == i {
			b.WriteString("    " + selectedStyle.Render("> "+choice) + "\n")
		} else {
			b.WriteString("      " + choice + "\n")
		}
	}

	return b.String()
}

// mapChoiceToResolution converts a menu row into a TargetResolution.
func mapChoiceToResolution(cursor int) TargetResolution {
	switch cursor {
	case 0:
		return ShowChanges
	case 1:
		return Keep
	case 2:
		return Replace
	default:
		return Cancel
	}
}

// summaryViewerModel is the BubbleTea model for scrolling through a change
// summary
type summaryViewerModel struct {
	title    string
	content  string
	viewport viewport.Model
	ready    bool
}

func newSummaryViewerModel(summary *Summary) summaryViewerModel {
	return summaryViewerModel{
		title:   fmt.Sprintf("Changes: %s (%s)", summary.Target, summary.Headline()),
		content: summary.Render(),
	}
}

// Init starts the viewer; sizing arrives with the first WindowSizeMsg.
func (m summaryViewerModel) Init() tea.Cmd {
	return nil
}

// Update scrolls the preview and resizes it with the terminal.
func (m summaryViewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit

		case "up", "k":
			m.viewport.ScrollUp(1)

		case "down", "j":
			m.viewport.ScrollDown(1)

		case "pgup", "b":
			m.viewport.PageUp()

		case "pgdown", "f", "space":
			m.viewport.PageDown()
		}

	case tea.WindowSizeMsg:
		verticalMargin := 4

		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, msg.Height-verticalMargin)
			m.viewport.SetContent(m.content)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = msg.Height - verticalMargin
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the viewer
func (m summaryViewerModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := titleStyle.Render(m.title)
	footer := mutedStyle.Render("[↑/↓] Scroll    [q] Return to menu")
	return header + "\n" + borderStyle.Width(m.viewport.Width).Render(m.viewport.View()) + "\n" + footer
}
