package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/statemachine/ir"
	"github.com/wippyai/statemachine/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	codeStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4"))
)

type interactiveModel struct {
	err      error
	module   *ir.Module
	interp   *runtime.Interpreter
	sched    *runtime.Scheduler
	step     runtime.StepResult
	filename string
	result   string
	funcs    []*ir.Function
	inputs   []textinput.Model
	answer   textinput.Model
	code     viewport.Model
	selected int
	focusIdx int
	state    modelState
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateStep
	stateDone
)

func newInteractiveModel(filename string, m *ir.Module) *interactiveModel {
	answer := textinput.New()
	answer.Placeholder = "42, \"text\", true, unit or !failure"
	answer.Prompt = "answer: "
	answer.Width = 40

	model := &interactiveModel{
		filename: filename,
		module:   m,
		answer:   answer,
		code:     viewport.New(80, 16),
		state:    stateSelectFunc,
	}
	for _, fn := range m.Funcs() {
		if fn.Lowered {
			model.funcs = append(model.funcs, fn)
		}
	}
	for _, fn := range m.Funcs() {
		if !fn.Lowered {
			model.funcs = append(model.funcs, fn)
		}
	}
	return model
}

type stepMsg struct {
	err  error
	step runtime.StepResult
}

type badAnswerMsg struct {
	err error
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.code.Width = msg.Width - 2
		m.code.Height = max(msg.Height/2, 6)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.close()
			return m, tea.Quit

		case "q":
			if m.state == stateSelectFunc || m.state == stateDone {
				m.close()
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.funcs) == 0 {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.start
				}
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.start

			case stateStep:
				return m, m.resume

			case stateDone:
				m.reset()
				return m, nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateStep, stateDone:
				m.reset()
			}
			return m, nil
		}

	case badAnswerMsg:
		m.err = msg.err
		return m, nil

	case stepMsg:
		m.err = nil
		m.step = msg.step
		if msg.err != nil || msg.step.Status != runtime.StepContinue {
			m.err = msg.err
			m.state = stateDone
			switch {
			case msg.err != nil:
			case msg.step.Status == runtime.StepIdle:
				m.err = fmt.Errorf("suspended with no parked operation")
			default:
				m.result = runtime.Format(msg.step.Value)
			}
			return m, nil
		}
		m.state = stateStep
		m.answer.SetValue("")
		m.answer.Focus()
		return m, nil
	}

	switch m.state {
	case stateInputArgs:
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case stateStep:
		var cmd, vcmd tea.Cmd
		m.answer, cmd = m.answer.Update(msg)
		m.code, vcmd = m.code.Update(msg)
		return m, tea.Batch(cmd, vcmd)
	}
	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	fn := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, len(fn.Params))
	for i, p := range fn.Params {
		ti := textinput.New()
		ti.Placeholder = p.Type.String()
		ti.Prompt = p.Name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0

	src := ir.String(fn)
	if fn.StateMachine != nil {
		src += "\n\n" + ir.String(fn.StateMachine)
	}
	m.code.SetContent(src)
	m.code.GotoTop()
}

func (m *interactiveModel) start() tea.Msg {
	ctx := context.Background()
	fn := m.funcs[m.selected]

	args := make([]runtime.Value, len(m.inputs))
	for i, input := range m.inputs {
		v, err := parseValue(strings.TrimSpace(input.Value()))
		if err != nil {
			return stepMsg{err: fmt.Errorf("%s: %w", fn.Params[i].Name, err)}
		}
		args[i] = v
	}

	m.sched = runtime.NewScheduler(builtins())
	m.interp = runtime.NewInterpreter(m.module, runtime.Config{Host: m.sched})
	sr, err := m.sched.Start(ctx, m.interp, fn.Name, args...)
	return stepMsg{step: sr, err: err}
}

func (m *interactiveModel) resume() tea.Msg {
	r, err := parseAnswer(strings.TrimSpace(m.answer.Value()))
	if err != nil {
		return badAnswerMsg{err: err}
	}
	sr, err := m.sched.Step(context.Background(), r)
	return stepMsg{step: sr, err: err}
}

// parseAnswer reads the outcome of a parked operation. A leading "!" makes
// it a failure carrying the rest as the thrown value; empty input is unit.
func parseAnswer(s string) (runtime.Result, error) {
	fail := strings.HasPrefix(s, "!")
	s = strings.TrimSpace(strings.TrimPrefix(s, "!"))
	var v runtime.Value = ir.Unit
	if s != "" {
		var err error
		if v, err = parseValue(s); err != nil {
			return runtime.Result{}, err
		}
	}
	if fail {
		return runtime.Failure(&runtime.Thrown{Value: v}), nil
	}
	return runtime.Success(v), nil
}

func (m *interactiveModel) reset() {
	m.close()
	m.state = stateSelectFunc
	m.inputs = nil
	m.result = ""
	m.err = nil
	m.step = runtime.StepResult{}
}

func (m *interactiveModel) close() {
	if m.sched != nil {
		_ = m.sched.Close(context.Background())
		m.sched = nil
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("State Machine Stepper"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		if len(m.funcs) == 0 {
			b.WriteString("Module has no functions.\n\n")
			b.WriteString(helpStyle.Render("q quit"))
			break
		}
		b.WriteString("Select a function to call:\n\n")
		for i, fn := range m.funcs {
			cursor := "  "
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + formatFunc(fn)))
			} else {
				b.WriteString(cursor + formatFunc(fn))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		fn := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(fn.Name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(fn.Params[i].Type.String()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateStep:
		fn := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("%s suspended after %d steps\n", funcStyle.Render(fn.Name), m.sched.Steps()))
		b.WriteString(codeStyle.Render(m.code.View()))
		b.WriteString("\n\nParked:\n")
		for i, op := range m.sched.Pending() {
			line := fmt.Sprintf("#%d %s(%s)", op.Handle, op.Name, formatArgs(op.Args))
			if i == 0 {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(m.answer.View())
		if m.err != nil {
			b.WriteString(" ")
			b.WriteString(errorStyle.Render(m.err.Error()))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter resume • pgup/pgdn scroll • esc cancel"))

	case stateDone:
		fn := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(fn.Name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		if m.sched != nil {
			b.WriteString(helpStyle.Render(fmt.Sprintf("  (%d suspensions)", m.sched.Steps())))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func formatFunc(fn *ir.Function) string {
	var params []string
	for _, p := range fn.Params {
		params = append(params, p.Name+": "+typeStyle.Render(p.Type.String()))
	}
	s := funcStyle.Render(fn.Name) + "(" + strings.Join(params, ", ") + ")"
	if fn.Result != ir.TypeAny {
		s += " -> " + typeStyle.Render(fn.Result.String())
	}
	if fn.Lowered {
		s += " " + helpStyle.Render("[state machine]")
	}
	return s
}

func formatArgs(args []runtime.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = runtime.Format(a)
	}
	return strings.Join(parts, ", ")
}

func runInteractive(filename string, m *ir.Module) error {
	p := tea.NewProgram(newInteractiveModel(filename, m), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
