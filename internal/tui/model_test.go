package tui

import (
	"errors"
	"image/color"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaz8081/fossleep-lamp/internal/panel"
	"github.com/chaz8081/fossleep-lamp/internal/session"
)

type countingScanner struct {
	calls int
}

func (c *countingScanner) StartScan() { c.calls++ }

func newTestModel(t *testing.T) (*Model, *panel.Store, *countingScanner) {
	t.Helper()
	store := panel.NewStore(panel.Options{
		Color:     color.RGBA{R: 255, G: 255, B: 255, A: 255},
		Intensity: 0.5,
		Now:       time.Date(2025, 3, 27, 21, 45, 0, 0, time.UTC),
	})
	scanner := &countingScanner{}
	m := New(Deps{Store: store, Scanner: scanner, SplashDuration: 2 * time.Second})
	return m, store, scanner
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// showPanel dismisses the splash and reveals every section.
func showPanel(m *Model) {
	m.Update(splashDoneMsg{})
	for i := 0; i < sectionCount; i++ {
		m.Update(revealMsg{})
	}
}

func focusOn(m *Model, c control) {
	for m.focus != c {
		m.Update(tea.KeyMsg{Type: tea.KeyTab})
	}
}

func TestSplashTransitionsOnce(t *testing.T) {
	m, store, _ := newTestModel(t)
	require.True(t, store.State().ShowSplash)

	_, cmd := m.Update(splashDoneMsg{})
	assert.False(t, store.State().ShowSplash)
	assert.NotNil(t, cmd, "dismissal should schedule the reveal animation")

	_, cmd = m.Update(splashDoneMsg{})
	assert.Nil(t, cmd, "a second splash timer must not restart the reveal")
}

func TestSplashViewUntilDismissed(t *testing.T) {
	m, _, _ := newTestModel(t)
	assert.Contains(t, m.View(), "F O S S L E E P")
	assert.NotContains(t, m.View(), "CONNECT LAMP")

	showPanel(m)
	assert.NotContains(t, m.View(), "F O S S L E E P")
	assert.Contains(t, m.View(), "CONNECT LAMP")
}

func TestKeysIgnoredDuringSplash(t *testing.T) {
	m, store, scanner := newTestModel(t)
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, 0, scanner.calls)
	assert.Equal(t, panel.StatusNotConnected, store.State().ConnectionStatus)
}

func TestRevealIsGradual(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.Update(splashDoneMsg{})

	_, cmd := m.Update(revealMsg{})
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "CONNECT LAMP")
	assert.NotContains(t, m.View(), "SET TIMER")

	m.Update(revealMsg{})
	_, cmd = m.Update(revealMsg{})
	assert.Nil(t, cmd, "reveal stops after the last section")
	assert.Contains(t, m.View(), "SET TIMER")
}

func TestConnectButton(t *testing.T) {
	m, store, scanner := newTestModel(t)
	showPanel(m)
	focusOn(m, controlConnect)

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, 1, scanner.calls)
	assert.Equal(t, panel.StatusConnecting, store.State().ConnectionStatus)
	assert.Contains(t, m.View(), panel.StatusConnecting)
}

func TestTimerButtonDoesNothing(t *testing.T) {
	m, store, scanner := newTestModel(t)
	showPanel(m)
	focusOn(m, controlTimer)

	before := store.State()
	notified := false
	store.Subscribe(func(panel.State) { notified = true })

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.Equal(t, before, store.State())
	assert.False(t, notified)
	assert.Equal(t, 0, scanner.calls)
}

func TestIntensityAdjustsOnGrid(t *testing.T) {
	m, store, _ := newTestModel(t)
	showPanel(m)
	focusOn(m, controlIntensity)

	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, 0.6, store.State().Intensity)

	for i := 0; i < 10; i++ {
		m.Update(tea.KeyMsg{Type: tea.KeyRight})
	}
	assert.Equal(t, 1.0, store.State().Intensity)

	for i := 0; i < 15; i++ {
		m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	}
	assert.Equal(t, 0.0, store.State().Intensity)
}

func TestColorPickerCycles(t *testing.T) {
	m, store, _ := newTestModel(t)
	showPanel(m)
	focusOn(m, controlColor)

	start := store.State().Color
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.NotEqual(t, start, store.State().Color)

	m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	assert.Equal(t, start, store.State().Color)
}

func TestTurnOffTimeAdjusts(t *testing.T) {
	m, store, _ := newTestModel(t)
	showPanel(m)
	focusOn(m, controlTurnOff)

	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, "21:46", store.State().TurnOffTime.Format("15:04"))

	m.Update(keyRunes("L"))
	assert.Equal(t, "22:46", store.State().TurnOffTime.Format("15:04"))

	m.Update(keyRunes("H"))
	m.Update(keyRunes("H"))
	assert.Equal(t, "20:46", store.State().TurnOffTime.Format("15:04"))
}

func TestHourKeysOnlyAffectTimePicker(t *testing.T) {
	m, store, _ := newTestModel(t)
	showPanel(m)
	focusOn(m, controlIntensity)

	before := store.State()
	m.Update(keyRunes("L"))
	assert.Equal(t, before, store.State())
}

func TestFocusWraps(t *testing.T) {
	m, _, _ := newTestModel(t)
	showPanel(m)

	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, controlTimer, m.focus)
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, controlConnect, m.focus)
}

func TestSessionFailureKeepsStatusByDefault(t *testing.T) {
	m, store, _ := newTestModel(t)
	showPanel(m)
	focusOn(m, controlConnect)
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	m.Update(SessionMsg{Snapshot: session.Snapshot{Phase: session.PhaseHalted, Err: errors.New("peer refused")}})

	assert.Equal(t, panel.StatusConnecting, store.State().ConnectionStatus)
	assert.Contains(t, m.View(), "peer refused")
}

func TestQuit(t *testing.T) {
	m, _, _ := newTestModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestStepColorWraps(t *testing.T) {
	white := toRGBA(palette[0])
	last := toRGBA(palette[len(palette)-1])
	assert.Equal(t, last, stepColor(white, -1))
	assert.Equal(t, white, stepColor(last, 1))
}

func TestNearestSwatch(t *testing.T) {
	assert.Equal(t, 0, nearestSwatch(color.RGBA{R: 250, G: 250, B: 250, A: 255}))
	assert.Equal(t, 2, nearestSwatch(color.RGBA{R: 240, G: 10, B: 5, A: 255}), "near-red maps to the 0° hue")
}
