package picker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"awsnav/selector"
	"awsnav/styles"
)

const (
	defaultWidth  = 80
	defaultHeight = 20
)

// ErrCancelled is returned when the user leaves the picker without choosing
var ErrCancelled = selector.ErrCancelled

// item is one list row. index points back into the slice given to Pick so
// filtering does not change what is returned.
type item struct {
	title       string
	description string
	index       int
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.description }
func (i item) FilterValue() string { return i.title }

type model struct {
	list      list.Model
	chosen    int
	cancelled bool
	done      bool
}

func newModel(prompt string, items []selector.Item) model {
	rows := make([]list.Item, len(items))
	for i, it := range items {
		rows[i] = item{title: it.Label, description: it.Description, index: i}
	}

	// Create delegate for styling list items
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = styles.SelectedTitleStyle
	delegate.Styles.SelectedDesc = styles.SelectedDescStyle
	delegate.ShowDescription = hasDescriptions(items)
	if !delegate.ShowDescription {
		delegate.SetSpacing(0)
	}

	l := list.New(rows, delegate, defaultWidth, defaultHeight)
	l.Title = prompt
	l.Styles.Title = styles.TitleStyle
	l.SetShowStatusBar(len(items) > 1)
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{
			key.NewBinding(
				key.WithKeys("enter"),
				key.WithHelp("enter", "select"),
			),
		}
	}

	return model{list: l, chosen: -1}
}

func hasDescriptions(items []selector.Item) bool {
	for _, it := range items {
		if it.Description != "" {
			return true
		}
	}
	return false
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-1)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancelled = true
			m.done = true
			return m, tea.Quit
		case "esc":
			// esc first clears an active filter
			if m.list.FilterState() == list.Unfiltered {
				m.cancelled = true
				m.done = true
				return m, tea.Quit
			}
		case "enter":
			if m.list.FilterState() != list.Filtering {
				if it, ok := m.list.SelectedItem().(item); ok {
					m.chosen = it.index
					m.done = true
					return m, tea.Quit
				}
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.done {
		return ""
	}
	return m.list.View()
}

// Picker renders a filterable list on the terminal
type Picker struct {
	Input  io.Reader
	Output io.Writer
}

// New creates a picker that reads the keyboard from stdin and draws on
// stderr, keeping stdout free for `eval`
func New() *Picker {
	return &Picker{Input: os.Stdin, Output: os.Stderr}
}

// Pick shows items under prompt and returns the chosen index
func (p *Picker) Pick(ctx context.Context, prompt string, items []selector.Item) (int, error) {
	if len(items) == 0 {
		return 0, errors.New("nothing to pick from")
	}

	prog := tea.NewProgram(newModel(prompt, items),
		tea.WithContext(ctx),
		tea.WithInput(p.Input),
		tea.WithOutput(p.Output),
		tea.WithAltScreen(),
	)

	final, err := prog.Run()
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("failed to run picker: %w", err)
	}

	m, ok := final.(model)
	if !ok || m.cancelled || m.chosen < 0 {
		return 0, ErrCancelled
	}

	return m.chosen, nil
}
