package cli

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/apresai/quizzify/internal/llm"
	"github.com/apresai/quizzify/internal/quiz"
)

// menuItem represents a single configurable option in the setup wizard.
type menuItem struct {
	label    string
	value    string
	options  []menuOption
	required bool
	editing  bool
	cursor   int // cursor within options when editing
}

type menuOption struct {
	label string
	value string
}

type menuState int

const (
	stateMenu menuState = iota
	stateEditing
)

// tuiModel is the Bubble Tea model for the generation setup wizard.
type tuiModel struct {
	items     []menuItem
	cursor    int
	state     menuState
	width     int
	err       error
	confirmed bool
	cancelled bool
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginBottom(1)

	menuLabelStyle = lipgloss.NewStyle().
			Width(18).
			Align(lipgloss.Right).
			MarginRight(2)

	menuValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	menuValueDimStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#555555")).
				Italic(true)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	requiredStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	optionStyle = lipgloss.NewStyle().
			PaddingLeft(4)

	selectedOptionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#04B575")).
				Bold(true).
				PaddingLeft(2)

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 3)

	buttonDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555")).
			Padding(0, 3)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	headerBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#7D56F4")).
			MarginBottom(1).
			PaddingBottom(0)
)

const (
	idxInputs    = 0
	idxOutput    = 1
	idxTopic     = 2
	idxQuestions = 3
	idxModel     = 4
	idxPolicy    = 5
	idxGenerate  = 6
)

var modelLabels = map[string]string{
	"haiku":        "Haiku 4.5 (fast, affordable)",
	"sonnet":       "Sonnet 4.5 (balanced)",
	"gemini-flash": "Gemini Flash (fast)",
	"gemini-pro":   "Gemini Pro (powerful)",
	"nova-lite":    "Nova Lite (Bedrock)",
}

func modelOptions() []menuOption {
	var opts []menuOption
	for _, name := range llm.Names() {
		label := modelLabels[name]
		if label == "" {
			label = name
		}
		if name == llm.DefaultModel {
			label += " (default)"
		}
		opts = append(opts, menuOption{label: label, value: name})
	}
	return opts
}

func questionOptions() []menuOption {
	opts := make([]menuOption, 0, quiz.MaxQuestions)
	for n := 1; n <= quiz.MaxQuestions; n++ {
		opts = append(opts, menuOption{label: strconv.Itoa(n), value: strconv.Itoa(n)})
	}
	return opts
}

func buildMenuItems(f *generateFlags) []menuItem {
	items := []menuItem{
		{label: "Inputs", value: strings.Join(f.inputs, ", "), required: true},
		{label: "Output", value: f.output},
		{label: "Topic", value: f.topic},
		{label: "Questions", value: strconv.Itoa(f.numQuestions), options: questionOptions()},
		{label: "Model", value: f.model, options: modelOptions()},
		{
			label: "Unreadable Files",
			value: f.failurePolicy,
			options: []menuOption{
				{label: "Stop the run (default)", value: "fail-fast"},
				{label: "Skip and continue", value: "skip"},
			},
		},
		{label: ">>> Generate <<<"},
	}

	for i := range items {
		for j, opt := range items[i].options {
			if opt.value == items[i].value {
				items[i].cursor = j
				break
			}
		}
	}
	return items
}

func initialTUIModel(f *generateFlags) tuiModel {
	return tuiModel{
		items:  buildMenuItems(f),
		cursor: idxInputs,
		state:  stateMenu,
	}
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) isTextInput(idx int) bool {
	return idx == idxInputs || idx == idxOutput || idx == idxTopic
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case stateMenu:
			return m.updateMenu(msg)
		case stateEditing:
			return m.updateEditing(msg)
		}
	}
	return m, nil
}

func (m tuiModel) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.cancelled = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case "enter", " ":
		if m.cursor == idxGenerate {
			if len(splitInputs(m.items[idxInputs].value)) == 0 {
				m.err = fmt.Errorf("Inputs is required")
				return m, nil
			}
			m.confirmed = true
			return m, tea.Quit
		}
		if m.isTextInput(m.cursor) || len(m.items[m.cursor].options) > 0 {
			m.state = stateEditing
			m.items[m.cursor].editing = true
			m.err = nil
		}
	}
	return m, nil
}

func (m tuiModel) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	item := &m.items[m.cursor]

	if m.isTextInput(m.cursor) {
		switch msg.String() {
		case "enter":
			item.editing = false
			m.state = stateMenu
			m.cursor++
		case "esc":
			item.editing = false
			m.state = stateMenu
		case "backspace":
			if len(item.value) > 0 {
				item.value = item.value[:len(item.value)-1]
			}
		case "ctrl+u":
			item.value = ""
		default:
			if msg.Type == tea.KeyRunes {
				item.value += string(msg.Runes)
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "enter", " ":
		if item.cursor >= 0 && item.cursor < len(item.options) {
			item.value = item.options[item.cursor].value
		}
		item.editing = false
		m.state = stateMenu
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case "esc":
		item.editing = false
		m.state = stateMenu

	case "up", "k":
		if item.cursor > 0 {
			item.cursor--
		}

	case "down", "j":
		if item.cursor < len(item.options)-1 {
			item.cursor++
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	var b strings.Builder

	b.WriteString(headerBorder.Render(titleStyle.Render("Quizzify")))
	b.WriteString("\n")

	for i, item := range m.items {
		isActive := m.cursor == i

		if i == idxGenerate {
			b.WriteString("\n")
			if isActive {
				b.WriteString("  " + buttonStyle.Render(" Generate "))
			} else {
				b.WriteString("  " + buttonDimStyle.Render(" Generate "))
			}
			b.WriteString("\n")
			continue
		}

		cursor := "  "
		if isActive {
			cursor = cursorStyle.Render("> ")
		}

		label := item.label
		if item.required {
			label += requiredStyle.Render("*")
		}

		var value string
		switch {
		case item.editing && m.isTextInput(i):
			value = menuValueStyle.Render(item.value + "_")
		case item.value == "":
			placeholder := "(not set)"
			switch i {
			case idxInputs:
				placeholder = "(PDF paths or URLs, comma-separated)"
			case idxOutput:
				placeholder = "(auto-named in the output directory)"
			case idxTopic:
				placeholder = "(" + quiz.DefaultTopic + ")"
			}
			value = menuValueDimStyle.Render(placeholder)
		default:
			display := item.value
			for _, opt := range item.options {
				if opt.value == item.value {
					display = opt.label
					break
				}
			}
			value = menuValueStyle.Render(display)
		}

		b.WriteString(cursor + menuLabelStyle.Render(label) + " " + value + "\n")

		if item.editing && !m.isTextInput(i) {
			for j, opt := range item.options {
				if j == item.cursor {
					b.WriteString(selectedOptionStyle.Render("> "+opt.label) + "\n")
				} else {
					b.WriteString(optionStyle.Render("  "+opt.label) + "\n")
				}
			}
		}
	}

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render("  Error: "+m.err.Error()) + "\n")
	}

	switch m.state {
	case stateMenu:
		b.WriteString(helpStyle.Render("  j/k or arrows to navigate | enter to edit | q to quit"))
	case stateEditing:
		if m.isTextInput(m.cursor) {
			b.WriteString(helpStyle.Render("  type value | enter to confirm | esc to cancel | ctrl+u to clear"))
		} else {
			b.WriteString(helpStyle.Render("  j/k or arrows to pick | enter to select | esc to cancel"))
		}
	}
	b.WriteString("\n")

	return b.String()
}

// apply copies the wizard's selections into f.
func (m tuiModel) apply(f *generateFlags) {
	f.inputs = splitInputs(m.items[idxInputs].value)
	f.output = m.items[idxOutput].value
	f.topic = m.items[idxTopic].value
	if n, err := strconv.Atoi(m.items[idxQuestions].value); err == nil {
		f.numQuestions = n
	}
	f.model = m.items[idxModel].value
	f.failurePolicy = m.items[idxPolicy].value
}

func splitInputs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runInteractiveSetup(f *generateFlags) error {
	p := tea.NewProgram(initialTUIModel(f), tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	final := result.(tuiModel)
	if final.cancelled || !final.confirmed {
		return fmt.Errorf("generation cancelled")
	}
	final.apply(f)
	return nil
}
