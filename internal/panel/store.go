// Package panel holds the control panel's state: the selected lamp color,
// intensity, turn-off time, connection status text and splash flag. None
// of it is transmitted to the lamp.
package panel

import (
	"image/color"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/exp/maps"

	"github.com/chaz8081/fossleep-lamp/internal/session"
)

// Status texts shown next to the connect button.
const (
	StatusNotConnected     = "Not Connected"
	StatusConnecting       = "Connecting..."
	StatusConnectionFailed = "Connection failed"
)

// IntensityStep is the slider granularity.
const IntensityStep = 0.1

// State is a snapshot of the control panel.
type State struct {
	ShowSplash       bool
	Color            color.RGBA
	Intensity        float64   // within [0, 1], on the IntensityStep grid
	TurnOffTime      time.Time // only hour and minute are meaningful
	ConnectionStatus string
}

// Scanner starts a device scan.
type Scanner interface {
	StartScan()
}

// Options configures a Store.
type Options struct {
	Color     color.RGBA
	Intensity float64
	Now       time.Time
	// ReportFailures lets a halted session overwrite the status text.
	// When false a failed connection leaves "Connecting..." in place.
	ReportFailures bool
}

// Store is the single owner of panel state. Every mutation notifies
// subscribers with the new State.
type Store struct {
	reportFailures bool

	mu      sync.Mutex
	state   State
	subs    map[int]func(State)
	nextSub int
}

// NewStore creates a Store showing the splash screen.
func NewStore(opts Options) *Store {
	return &Store{
		reportFailures: opts.ReportFailures,
		state: State{
			ShowSplash:       true,
			Color:            opts.Color,
			Intensity:        SnapIntensity(opts.Intensity),
			TurnOffTime:      timeOfDay(opts.Now),
			ConnectionStatus: StatusNotConnected,
		},
		subs: make(map[int]func(State)),
	}
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for state changes and returns a function that
// removes it. fn runs synchronously on the mutating goroutine.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// update applies fn and notifies subscribers if the state changed.
func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	before := s.state
	fn(&s.state)
	after := s.state
	subs := maps.Values(s.subs)
	s.mu.Unlock()

	if after == before {
		return
	}
	for _, sub := range subs {
		sub(after)
	}
}

// DismissSplash hides the splash screen. It reports whether this call
// performed the transition; later calls are no-ops.
func (s *Store) DismissSplash() bool {
	dismissed := false
	s.update(func(st *State) {
		if st.ShowSplash {
			st.ShowSplash = false
			dismissed = true
		}
	})
	return dismissed
}

func (s *Store) SetColor(c color.RGBA) {
	s.update(func(st *State) { st.Color = c })
}

// SetIntensity stores v snapped to the slider grid and returns the
// stored value.
func (s *Store) SetIntensity(v float64) float64 {
	snapped := SnapIntensity(v)
	s.update(func(st *State) { st.Intensity = snapped })
	return snapped
}

// SetTurnOffTime keeps only the hour and minute of t.
func (s *Store) SetTurnOffTime(t time.Time) {
	tod := timeOfDay(t)
	s.update(func(st *State) { st.TurnOffTime = tod })
}

func (s *Store) SetConnectionStatus(text string) {
	s.update(func(st *State) { st.ConnectionStatus = text })
}

// Connect is the connect button: it shows "Connecting..." and asks the
// scanner to scan. The scanner decides whether a scan actually starts.
func (s *Store) Connect(scanner Scanner) {
	slog.Info("[PANEL] connect pressed")
	scanner.StartScan()
	s.SetConnectionStatus(StatusConnecting)
}

// SetTimer is the set-timer button. It is bound to no behavior: the lamp
// has no known timer command, so pressing it changes nothing.
func (s *Store) SetTimer() {}

// ReportSession reflects a session snapshot in the status text. Only a
// halted session is considered, and only when failures are reported;
// otherwise the status text is left alone.
func (s *Store) ReportSession(snap session.Snapshot) {
	if !s.reportFailures || snap.Phase != session.PhaseHalted {
		return
	}
	s.update(func(st *State) {
		if st.ConnectionStatus == StatusConnecting {
			st.ConnectionStatus = StatusConnectionFailed
		}
	})
}

// SnapIntensity rounds v to the nearest IntensityStep and clamps it to
// [0, 1].
func SnapIntensity(v float64) float64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 1
	}
	steps := math.Round(v / IntensityStep)
	// Rebuild from integer tenths so 0.3 is stored as 0.3, not 0.30000000000000004.
	return steps / 10
}

// timeOfDay drops everything below the minute.
func timeOfDay(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}
