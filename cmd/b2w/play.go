package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wippyai/brainwasm/bf"
	"github.com/wippyai/brainwasm/compiler"
	"github.com/wippyai/brainwasm/engine"
)

// playTimeout bounds each playground run.
const playTimeout = 2 * time.Second

func newPlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play [program.bf]",
		Short: "Edit and run programs interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.New("play needs an interactive terminal")
			}

			var source string
			if len(args) == 1 {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				source = string(data)
			}

			p := tea.NewProgram(newPlayModel(source), tea.WithAltScreen())
			_, err := p.Run()
			return err
		},
	}
}

type focusArea int

const (
	focusSource focusArea = iota
	focusStdin
)

type playModel struct {
	err     error
	source  textarea.Model
	stdin   textinput.Model
	output  string
	stats   bf.Stats
	elapsed time.Duration
	size    int
	focus   focusArea
	running bool
	ran     bool
}

type runResultMsg struct {
	err     error
	output  string
	stats   bf.Stats
	elapsed time.Duration
	size    int
}

func newPlayModel(source string) *playModel {
	ta := textarea.New()
	ta.Placeholder = "++++++++[>++++++++<-]>+."
	ta.ShowLineNumbers = false
	ta.SetWidth(60)
	ta.SetHeight(10)
	ta.SetValue(source)
	ta.Focus()

	ti := textinput.New()
	ti.Prompt = "stdin: "
	ti.Placeholder = "input bytes"
	ti.Width = 50

	return &playModel{source: ta, stdin: ti, focus: focusSource}
}

func (m *playModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m *playModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "tab":
			return m, m.toggleFocus()

		case "ctrl+r":
			if m.running {
				return m, nil
			}
			m.running = true
			return m, runProgram(m.source.Value(), m.stdin.Value())
		}

	case tea.WindowSizeMsg:
		width := msg.Width - 4
		if width > 10 {
			m.source.SetWidth(width)
			m.stdin.Width = width - len(m.stdin.Prompt)
		}
		return m, nil

	case runResultMsg:
		m.running = false
		m.ran = true
		m.err = msg.err
		m.output = msg.output
		m.stats = msg.stats
		m.elapsed = msg.elapsed
		m.size = msg.size
		return m, nil
	}

	var cmd tea.Cmd
	if m.focus == focusSource {
		m.source, cmd = m.source.Update(msg)
	} else {
		m.stdin, cmd = m.stdin.Update(msg)
	}
	return m, cmd
}

func (m *playModel) toggleFocus() tea.Cmd {
	if m.focus == focusSource {
		m.focus = focusStdin
		m.source.Blur()
		return m.stdin.Focus()
	}
	m.focus = focusSource
	m.stdin.Blur()
	return m.source.Focus()
}

// runProgram compiles and executes source off the UI goroutine.
func runProgram(source, stdin string) tea.Cmd {
	return func() tea.Msg {
		return runSource(source, stdin)
	}
}

func runSource(source, stdin string) runResultMsg {
	instrs, err := bf.Parse(source)
	if err != nil {
		return runResultMsg{err: err}
	}
	res := runResultMsg{stats: bf.Count(instrs)}

	data, err := compiler.Emit(instrs, compiler.Options{Name: "play"})
	if err != nil {
		res.err = err
		return res
	}
	res.size = len(data)

	ctx, cancel := context.WithTimeout(context.Background(), playTimeout)
	defer cancel()

	var out bytes.Buffer
	start := time.Now()
	res.err = execute(ctx, data, nil, engine.IO{Stdin: strings.NewReader(stdin), Stdout: &out})
	res.elapsed = time.Since(start)
	res.output = out.String()
	return res
}

func (m *playModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("b2w play"))
	b.WriteString("\n\n")

	sourceBox, stdinBox := blurredBorder, blurredBorder
	if m.focus == focusSource {
		sourceBox = focusedBorder
	} else {
		stdinBox = focusedBorder
	}
	b.WriteString(sourceBox.Render(m.source.View()))
	b.WriteString("\n")
	b.WriteString(stdinBox.Render(m.stdin.View()))
	b.WriteString("\n\n")

	switch {
	case m.running:
		b.WriteString(dimStyle.Render("running..."))
	case m.ran:
		b.WriteString(headingStyle.Render("output"))
		b.WriteString("\n")
		b.WriteString(resultStyle.Render(printable(m.output)))
		b.WriteString("\n")
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n")
		}
		b.WriteString(dimStyle.Render(m.summary()))
	}

	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("ctrl+r run • tab switch field • esc quit"))
	return lipgloss.NewStyle().Padding(0, 1).Render(b.String())
}

func (m *playModel) summary() string {
	s := m.stats
	parts := []string{
		fmt.Sprintf("%d instructions", s.Total()),
		fmt.Sprintf("%d moves", s.Moves),
		fmt.Sprintf("%d adds", s.Adds),
		fmt.Sprintf("%d loops (depth %d)", s.Loops, s.MaxDepth),
	}
	if m.size > 0 {
		parts = append(parts, fmt.Sprintf("%d bytes", m.size))
	}
	if m.elapsed > 0 {
		parts = append(parts, m.elapsed.Round(time.Microsecond).String())
	}
	return strings.Join(parts, " · ")
}

// printable replaces control characters other than newline and tab so
// program output cannot corrupt the terminal.
func printable(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || unicode.IsPrint(r) {
			return r
		}
		return '·'
	}, s)
}
