package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/untypedvec"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	liveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	spareStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#444444"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// maxBarSlots caps the capacity bar width.
const maxBarSlots = 64

type interactiveModel struct {
	err     error
	vec     *untypedvec.Vec
	kind    elemKind
	result  string
	input   textinput.Model
	history []string
}

func newInteractiveModel(kind elemKind, vec *untypedvec.Vec) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "value to push, get <i>, reserve <n>"
	ti.Focus()
	ti.Width = 48

	return &interactiveModel{
		vec:   vec,
		kind:  kind,
		input: ti,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line != "" {
				m.execute(line)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// execute runs one command line against the vec.
func (m *interactiveModel) execute(line string) {
	m.err = nil
	m.result = ""

	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "get":
		i, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil {
			m.err = fmt.Errorf("get: %w", err)
			return
		}
		s, err := m.kind.get(m.vec, i)
		if err != nil {
			m.err = err
			return
		}
		m.result = fmt.Sprintf("[%d] = %s", i, s)
	case "reserve":
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil {
			m.err = fmt.Errorf("reserve: %w", err)
			return
		}
		before := m.vec.Cap()
		if err := m.vec.Reserve(n); err != nil {
			m.err = err
			return
		}
		m.result = fmt.Sprintf("cap %d -> %d", before, m.vec.Cap())
	default:
		val, err := m.kind.parse(line)
		if err != nil {
			m.err = fmt.Errorf("parse %s: %w", m.kind.name, err)
			return
		}
		before := m.vec.Cap()
		if err := m.kind.push(m.vec, val); err != nil {
			m.err = err
			return
		}
		m.result = fmt.Sprintf("pushed %s at [%d]", line, m.vec.Len()-1)
		if m.vec.Cap() != before {
			m.history = append(m.history, fmt.Sprintf("len=%d: cap %d -> %d", m.vec.Len(), before, m.vec.Cap()))
		}
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf(" Vec[%s] ", m.vec.Type())))
	b.WriteString("\n\n")

	b.WriteString(statStyle.Render(fmt.Sprintf("len %d  cap %d  %s", m.vec.Len(), m.vec.Cap(), m.vec.Layout())))
	b.WriteString("\n")
	b.WriteString(m.capacityBar())
	b.WriteString("\n\n")

	if len(m.history) > 0 {
		b.WriteString("Growth:\n")
		start := max(0, len(m.history)-5)
		for _, h := range m.history[start:] {
			b.WriteString("  " + h + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	} else if m.result != "" {
		b.WriteString(resultStyle.Render(m.result))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter: run • esc: quit"))
	return b.String()
}

func (m *interactiveModel) capacityBar() string {
	capacity, length := m.vec.Cap(), m.vec.Len()
	if capacity > maxBarSlots {
		length = length * maxBarSlots / capacity
		capacity = maxBarSlots
	}
	return liveStyle.Render(strings.Repeat("█", length)) +
		spareStyle.Render(strings.Repeat("░", capacity-length))
}

func runInteractive(kind elemKind, linear bool, maxPages uint32) error {
	opts, release, err := openAllocator(context.Background(), linear, maxPages)
	if err != nil {
		return err
	}
	defer release()

	v := kind.open(nil, opts...)
	defer v.Close()

	p := tea.NewProgram(newInteractiveModel(kind, v), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
