// Package tui implements the Bubble Tea control panel for the lamp: a
// splash screen followed by connect, color/intensity and timer sections.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chaz8081/fossleep-lamp/internal/panel"
	"github.com/chaz8081/fossleep-lamp/internal/session"
)

// Ensure *Model satisfies tea.Model.
var _ tea.Model = (*Model)(nil)

// control identifies the focusable control.
type control int

const (
	controlConnect control = iota
	controlColor
	controlIntensity
	controlTurnOff
	controlTimer
	controlCount
)

// sectionCount is the number of stacked panel sections.
const sectionCount = 3

func (c control) section() int {
	switch c {
	case controlConnect:
		return 0
	case controlColor, controlIntensity:
		return 1
	default:
		return 2
	}
}

// Deps are the collaborators of the control panel.
type Deps struct {
	Store          *panel.Store
	Scanner        panel.Scanner
	SplashDuration time.Duration
}

// Model is the root Bubble Tea model.
type Model struct {
	deps Deps
	keys keyMap

	help      help.Model
	spinner   spinner.Model
	intensity progress.Model

	focus    control
	revealed int
	session  session.Snapshot

	width  int
	height int
}

// New creates the control panel model.
func New(deps Deps) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorGreen500)

	return &Model{
		deps:      deps,
		keys:      defaultKeyMap(),
		help:      help.New(),
		spinner:   s,
		intensity: progress.New(progress.WithSolidFill("#4caf7d"), progress.WithWidth(30)),
	}
}

// Init starts the splash timer.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(splashTimer(m.deps.SplashDuration), m.spinner.Tick)
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case splashDoneMsg:
		if !m.deps.Store.DismissSplash() {
			return m, nil
		}
		return m, revealTick()

	case revealMsg:
		if m.revealed >= sectionCount {
			return m, nil
		}
		m.revealed++
		if m.revealed < sectionCount {
			return m, revealTick()
		}
		return m, nil

	case SessionMsg:
		m.session = msg.Snapshot
		m.deps.Store.ReportSession(msg.Snapshot)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if m.deps.Store.State().ShowSplash {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Next):
		m.focus = (m.focus + 1) % controlCount
	case key.Matches(msg, m.keys.Prev):
		m.focus = (m.focus + controlCount - 1) % controlCount
	case key.Matches(msg, m.keys.Press):
		m.press()
	case key.Matches(msg, m.keys.HourUp):
		m.adjustTurnOff(time.Hour)
	case key.Matches(msg, m.keys.HourDown):
		m.adjustTurnOff(-time.Hour)
	case key.Matches(msg, m.keys.Increase):
		m.adjust(1)
	case key.Matches(msg, m.keys.Decrease):
		m.adjust(-1)
	}
	return m, nil
}

func (m *Model) press() {
	switch m.focus {
	case controlConnect:
		m.deps.Store.Connect(m.deps.Scanner)
	case controlTimer:
		m.deps.Store.SetTimer()
	}
}

func (m *Model) adjust(dir int) {
	store := m.deps.Store
	st := store.State()
	switch m.focus {
	case controlColor:
		store.SetColor(stepColor(st.Color, dir))
	case controlIntensity:
		store.SetIntensity(st.Intensity + float64(dir)*panel.IntensityStep)
	case controlTurnOff:
		m.adjustTurnOff(time.Duration(dir) * time.Minute)
	}
}

func (m *Model) adjustTurnOff(d time.Duration) {
	if m.focus != controlTurnOff {
		return
	}
	st := m.deps.Store.State()
	m.deps.Store.SetTurnOffTime(st.TurnOffTime.Add(d))
}

// View renders the splash or the control panel.
func (m *Model) View() string {
	st := m.deps.Store.State()
	if st.ShowSplash {
		return m.viewSplash()
	}

	sections := []func(panel.State) string{
		m.viewConnect,
		m.viewColor,
		m.viewTimer,
	}
	var b strings.Builder
	for i := 0; i < m.revealed && i < len(sections); i++ {
		style := styleSection
		if m.focus.section() == i {
			style = styleSectionFocused
		}
		b.WriteString(style.Render(sections[i](st)))
		b.WriteString("\n")
	}
	b.WriteString(m.viewFooter())
	return b.String()
}

func (m *Model) viewSplash() string {
	logo := styleSplash.Render("F O S S L E E P") + "\n" + styleFooter.Render("smart lamp")
	if m.width == 0 || m.height == 0 {
		return logo
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, logo)
}

func (m *Model) viewConnect(st panel.State) string {
	status := st.ConnectionStatus
	switch m.session.Phase {
	case session.PhaseScanning, session.PhaseConnecting:
		status = m.spinner.View() + " " + status
	}
	return lipgloss.JoinVertical(lipgloss.Center,
		styleStatus.Render(status),
		m.button("CONNECT LAMP", controlConnect),
	)
}

func (m *Model) viewColor(st panel.State) string {
	swatch := lipgloss.NewStyle().
		Background(lipgloss.Color(hexOf(st.Color))).
		Render("      ")
	colorRow := fmt.Sprintf("%s  %s %s", m.label("Lamp color", controlColor), swatch, hexOf(st.Color))
	intensityRow := fmt.Sprintf("%s  %s", m.label("Intensity", controlIntensity), m.intensity.ViewAs(st.Intensity))
	return lipgloss.JoinVertical(lipgloss.Left, colorRow, intensityRow)
}

func (m *Model) viewTimer(st panel.State) string {
	timeRow := fmt.Sprintf("%s  %s", m.label("Turn-off time", controlTurnOff), st.TurnOffTime.Format("15:04"))
	return lipgloss.JoinVertical(lipgloss.Center,
		timeRow,
		m.button("SET TIMER", controlTimer),
	)
}

func (m *Model) viewFooter() string {
	phase := fmt.Sprintf("adapter %s · session %s", m.session.Adapter, m.session.Phase)
	if m.session.Err != nil {
		phase += " · " + m.session.Err.Error()
	}
	return styleFooter.Render(phase) + "\n" + m.help.View(m.keys)
}

func (m *Model) button(text string, c control) string {
	if m.focus == c {
		return styleButtonFocused.Render(text)
	}
	return styleButton.Render(text)
}

func (m *Model) label(text string, c control) string {
	if m.focus == c {
		return styleLabel.Underline(true).Render("› " + text)
	}
	return styleLabel.Render("  " + text)
}
