// Package session drives the scan, connect and discovery lifecycle of a
// single lamp connection as an explicit state machine. All state is owned
// by the Run loop; adapter callbacks and blocking adapter calls report
// back by posting events.
package session

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/exp/maps"

	"github.com/chaz8081/fossleep-lamp/internal/ble"
)

// Phase is the lifecycle position of the session state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseConnecting
	PhaseDiscoveringServices
	PhaseDiscoveringCharacteristics
	// PhaseReady is the terminal phase of a successful session. Nothing
	// further happens until the peripheral disconnects.
	PhaseReady
	// PhaseHalted follows any connect or discovery error. There is no
	// automatic recovery; a manual StartScan begins again.
	PhaseHalted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
	case PhaseConnecting:
		return "connecting"
	case PhaseDiscoveringServices:
		return "discovering services"
	case PhaseDiscoveringCharacteristics:
		return "discovering characteristics"
	case PhaseReady:
		return "ready"
	case PhaseHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// ActiveSession is the connected-device relationship. There is at most
// one per Manager.
type ActiveSession struct {
	ID              string
	Device          ble.Device
	Services        []ble.ServiceDescriptor
	Characteristics map[string][]ble.CharacteristicDescriptor // keyed by service UUID

	conn ble.Connection
}

func (s *ActiveSession) clone() *ActiveSession {
	if s == nil {
		return nil
	}
	c := &ActiveSession{
		ID:              s.ID,
		Device:          s.Device,
		Services:        slices.Clone(s.Services),
		Characteristics: make(map[string][]ble.CharacteristicDescriptor, len(s.Characteristics)),
	}
	for k, v := range s.Characteristics {
		c.Characteristics[k] = slices.Clone(v)
	}
	return c
}

// Snapshot is an immutable view of the manager published after every
// transition.
type Snapshot struct {
	Phase   Phase
	Adapter ble.AdapterState
	Target  ble.Device     // device being connected to or connected
	Session *ActiveSession // copy; nil when no session exists
	Err     error          // last error, cleared when a new scan starts
}

// Options configures the Manager.
type Options struct {
	Selector       Selector      // nil means FirstDevice
	ConnectTimeout time.Duration // 0 means wait forever
	QueueSize      int           // event queue capacity
}

// DefaultOptions returns the out-of-the-box behavior: connect to the
// first device seen and wait indefinitely for the connection.
func DefaultOptions() Options {
	return Options{
		Selector:  FirstDevice,
		QueueSize: 64,
	}
}

// Manager owns the BLE session lifecycle.
type Manager struct {
	adapter ble.Adapter
	opts    Options
	events  chan Event
	scanReq chan struct{}
	done    chan struct{}

	// postMu orders deliveries against Run closing the queue.
	postMu sync.RWMutex
	closed bool

	// Owned by the Run goroutine.
	ctx          context.Context
	phase        Phase
	adapterState ble.AdapterState
	scanCancel   context.CancelFunc
	scanGen      uint64
	target       ble.Device
	session      *ActiveSession
	pending      int
	lastErr      error
	errSeq       uint64
	published    bool
	lastKey      snapshotKey

	mu       sync.Mutex
	snapshot Snapshot
	subs     map[int]func(Snapshot)
	nextSub  int
}

// NewManager creates a Manager driving adapter. Call Run to start it.
func NewManager(adapter ble.Adapter, opts Options) *Manager {
	if opts.Selector == nil {
		opts.Selector = FirstDevice
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	return &Manager{
		adapter: adapter,
		opts:    opts,
		events:  make(chan Event, opts.QueueSize),
		scanReq: make(chan struct{}, 1),
		done:    make(chan struct{}),
		ctx:     context.Background(),
		subs:    make(map[int]func(Snapshot)),
	}
}

// StartScan asks the manager to begin scanning. It is a no-op unless the
// adapter is powered on and no scan or session is in progress. Failures
// are logged, never returned. StartScan never blocks: requests made while
// one is already pending collapse into it.
func (m *Manager) StartScan() {
	select {
	case m.scanReq <- struct{}{}:
	default:
	}
}

// Post delivers an event to the Run loop. Events posted after Run has
// returned are dropped.
func (m *Manager) Post(ev Event) {
	m.deliver(ev)
}

// deliver is Post reporting whether the event was queued. Once it
// returns true, the event is either handled by Run or drained by
// closeQueue.
func (m *Manager) deliver(ev Event) bool {
	m.postMu.RLock()
	defer m.postMu.RUnlock()
	if m.closed {
		return false
	}
	select {
	case m.events <- ev:
		return true
	case <-m.done:
		return false
	}
}

// closeQueue stops accepting events and releases connections that were
// queued but never handled.
func (m *Manager) closeQueue() {
	close(m.done)
	m.postMu.Lock()
	m.closed = true
	m.postMu.Unlock()

	for {
		select {
		case ev := <-m.events:
			if c, ok := ev.(Connected); ok {
				slog.Info("[SESSION] dropping connection made during shutdown", "id", c.Device.ID)
				_ = c.Conn.Disconnect()
			}
		default:
			return
		}
	}
}

// Snapshot returns the most recently published state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// Subscribe registers fn to receive every published snapshot. fn runs on
// the Run goroutine and must not block. The returned function removes
// the subscription.
func (m *Manager) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// SubscribeLatest is Subscribe for consumers that may block, such as a UI
// loop. fn runs on its own goroutine and always receives the newest
// snapshot; snapshots published while fn is busy are coalesced, so Run
// never waits on fn.
func (m *Manager) SubscribeLatest(fn func(Snapshot)) (unsubscribe func()) {
	latest := make(chan Snapshot, 1)
	stop := make(chan struct{})

	remove := m.Subscribe(func(s Snapshot) {
		for {
			select {
			case latest <- s:
				return
			default:
			}
			// Replace the undelivered snapshot.
			select {
			case <-latest:
			default:
			}
		}
	})

	go func() {
		for {
			select {
			case <-stop:
				return
			case s := <-latest:
				fn(s)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			remove()
			close(stop)
		})
	}
}

// Run consumes events until ctx is cancelled. On return any scan is
// stopped and the session is disconnected. Run must be called once.
func (m *Manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.ctx = ctx

	m.adapter.OnStateChange(func(s ble.AdapterState) {
		m.Post(AdapterStateChanged{State: s})
	})
	m.adapter.OnDisconnect(func(d ble.Device) {
		m.Post(Disconnected{Device: d})
	})
	// The platform reports its current state once on startup; a radio
	// that is already on therefore scans immediately.
	m.handle(AdapterStateChanged{State: m.adapter.State()})

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			m.closeQueue()
			return nil
		case <-m.scanReq:
			m.startScan()
			m.publish()
		case ev := <-m.events:
			m.handle(ev)
		}
	}
}

func (m *Manager) handle(ev Event) {
	switch ev := ev.(type) {
	case AdapterStateChanged:
		m.onAdapterStateChanged(ev.State)
	case scanEnded:
		m.onScanEnded(ev)
	case DeviceDiscovered:
		m.onDeviceDiscovered(ev.Device)
	case Connected:
		m.onConnected(ev.Device, ev.Conn)
	case ConnectFailed:
		m.onConnectFailed(ev.Device, ev.Err)
	case ServicesDiscovered:
		m.onServicesDiscovered(ev)
	case CharacteristicsDiscovered:
		m.onCharacteristicsDiscovered(ev)
	case Disconnected:
		m.onDisconnected(ev.Device)
	default:
		slog.Warn("[SESSION] unhandled event", "type", ev)
		return
	}
	m.publish()
}

func (m *Manager) onAdapterStateChanged(s ble.AdapterState) {
	m.adapterState = s
	slog.Info("[SESSION] adapter state changed", "state", s)
	if s == ble.StatePoweredOn {
		m.startScan()
		return
	}
	if m.phase == PhaseScanning {
		m.stopScan()
		m.phase = PhaseIdle
	}
}

func (m *Manager) startScan() {
	if m.adapterState != ble.StatePoweredOn {
		slog.Debug("[SESSION] scan deferred until adapter powers on", "state", m.adapterState)
		return
	}
	switch m.phase {
	case PhaseScanning:
		slog.Debug("[SESSION] scan already in progress")
		return
	case PhaseConnecting, PhaseDiscoveringServices, PhaseDiscoveringCharacteristics, PhaseReady:
		slog.Debug("[SESSION] session in progress, ignoring scan request", "phase", m.phase)
		return
	}

	// A halted session is replaced by the new attempt.
	m.dropSession()
	m.setErr(nil)
	m.target = ble.Device{}

	scanCtx, cancel := context.WithCancel(m.ctx)
	m.scanCancel = cancel
	m.scanGen++
	gen := m.scanGen
	m.phase = PhaseScanning
	slog.Info("[SESSION] scanning for devices")

	go func() {
		err := m.adapter.Scan(scanCtx, func(d ble.Device) {
			m.Post(DeviceDiscovered{Device: d})
		})
		m.Post(scanEnded{gen: gen, err: err})
	}()
}

// stopScan ends the running scan, if any.
func (m *Manager) stopScan() {
	if m.scanCancel == nil {
		return
	}
	if err := m.adapter.StopScan(); err != nil {
		slog.Debug("[SESSION] stop scan", "error", err)
	}
	m.scanCancel()
	m.scanCancel = nil
}

func (m *Manager) onScanEnded(ev scanEnded) {
	if ev.gen != m.scanGen || m.phase != PhaseScanning {
		return
	}
	m.scanCancel = nil
	m.phase = PhaseIdle
	if ev.err != nil {
		slog.Error("[SESSION] scan failed", "error", ev.err)
		m.setErr(ev.err)
	}
}

func (m *Manager) onDeviceDiscovered(d ble.Device) {
	if m.phase != PhaseScanning {
		return
	}
	if !m.opts.Selector(d) {
		slog.Debug("[SESSION] skipping device", "id", d.ID, "name", d.Name, "rssi", d.RSSI)
		return
	}

	slog.Info("[SESSION] device selected, connecting", "id", d.ID, "name", d.Name, "rssi", d.RSSI)
	m.stopScan()
	m.phase = PhaseConnecting
	m.target = d

	ctx := m.ctx
	timeout := m.opts.ConnectTimeout
	go func() {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		conn, err := m.adapter.Connect(ctx, d)
		if err != nil {
			m.Post(ConnectFailed{Device: d, Err: err})
			return
		}
		if !m.deliver(Connected{Device: d, Conn: conn}) {
			// Run has returned and will never own this connection.
			slog.Info("[SESSION] dropping connection made during shutdown", "id", d.ID)
			_ = conn.Disconnect()
		}
	}()
}

func (m *Manager) onConnected(d ble.Device, conn ble.Connection) {
	if m.phase != PhaseConnecting || m.target.ID != d.ID {
		slog.Warn("[SESSION] dropping unexpected connection", "id", d.ID)
		_ = conn.Disconnect()
		return
	}

	s := &ActiveSession{
		ID:              ulid.Make().String(),
		Device:          d,
		Characteristics: make(map[string][]ble.CharacteristicDescriptor),
		conn:            conn,
	}
	m.session = s
	m.phase = PhaseDiscoveringServices
	slog.Info("[SESSION] connected, discovering services", "id", d.ID, "session", s.ID)

	go func() {
		svcs, err := conn.DiscoverServices()
		m.Post(ServicesDiscovered{SessionID: s.ID, Services: svcs, Err: err})
	}()
}

func (m *Manager) onConnectFailed(d ble.Device, err error) {
	if m.phase != PhaseConnecting || m.target.ID != d.ID {
		return
	}
	slog.Error("[SESSION] failed to connect", "id", d.ID, "error", err)
	m.setErr(err)
	m.phase = PhaseHalted
}

func (m *Manager) onServicesDiscovered(ev ServicesDiscovered) {
	if m.session == nil || m.session.ID != ev.SessionID || m.phase != PhaseDiscoveringServices {
		return
	}
	if ev.Err != nil {
		slog.Error("[SESSION] error discovering services", "session", ev.SessionID, "error", ev.Err)
		m.setErr(ev.Err)
		m.phase = PhaseHalted
		return
	}

	for _, svc := range ev.Services {
		m.session.Services = append(m.session.Services, svc.Descriptor())
	}
	if len(ev.Services) == 0 {
		slog.Info("[SESSION] peripheral exposes no services", "session", ev.SessionID)
		m.phase = PhaseReady
		return
	}

	m.phase = PhaseDiscoveringCharacteristics
	m.pending = len(ev.Services)
	for _, svc := range ev.Services {
		go func(svc ble.Service) {
			chars, err := svc.DiscoverCharacteristics()
			m.Post(CharacteristicsDiscovered{
				SessionID:       ev.SessionID,
				Service:         svc.Descriptor(),
				Characteristics: chars,
				Err:             err,
			})
		}(svc)
	}
}

func (m *Manager) onCharacteristicsDiscovered(ev CharacteristicsDiscovered) {
	if m.session == nil || m.session.ID != ev.SessionID || m.phase != PhaseDiscoveringCharacteristics {
		return
	}
	if ev.Err != nil {
		slog.Error("[SESSION] error discovering characteristics", "service", ev.Service.UUID, "error", ev.Err)
		m.setErr(ev.Err)
		m.phase = PhaseHalted
		return
	}

	// Characteristics are recorded but never read, written or subscribed to.
	for _, c := range ev.Characteristics {
		slog.Debug("[SESSION] characteristic", "service", ev.Service.UUID, "uuid", c.UUID)
	}
	m.session.Characteristics[ev.Service.UUID] = ev.Characteristics

	m.pending--
	if m.pending == 0 {
		m.phase = PhaseReady
		slog.Info("[SESSION] discovery complete",
			"session", m.session.ID,
			"services", len(m.session.Services))
	}
}

func (m *Manager) onDisconnected(d ble.Device) {
	if m.session == nil || m.session.Device.ID != d.ID {
		return
	}
	slog.Warn("[SESSION] peripheral disconnected", "id", d.ID, "session", m.session.ID)
	m.session = nil
	m.pending = 0
	m.phase = PhaseIdle
}

// dropSession disconnects and forgets the current session.
func (m *Manager) dropSession() {
	if m.session == nil {
		return
	}
	if err := m.session.conn.Disconnect(); err != nil {
		slog.Warn("[SESSION] disconnect", "session", m.session.ID, "error", err)
	}
	m.session = nil
	m.pending = 0
}

func (m *Manager) shutdown() {
	m.stopScan()
	m.dropSession()
	m.phase = PhaseIdle
	m.publish()
}

func (m *Manager) setErr(err error) {
	if err == nil && m.lastErr == nil {
		return
	}
	m.lastErr = err
	m.errSeq++
}

// snapshotKey summarizes the observable state so that events which change
// nothing are not republished.
type snapshotKey struct {
	phase    Phase
	adapter  ble.AdapterState
	target   ble.Device
	session  *ActiveSession
	services int
	chars    int
	pending  int
	errSeq   uint64
}

func (m *Manager) key() snapshotKey {
	k := snapshotKey{
		phase:   m.phase,
		adapter: m.adapterState,
		target:  m.target,
		session: m.session,
		pending: m.pending,
		errSeq:  m.errSeq,
	}
	if m.session != nil {
		k.services = len(m.session.Services)
		k.chars = len(m.session.Characteristics)
	}
	return k
}

// publish notifies subscribers if the state changed since the last
// publish. The first call always publishes.
func (m *Manager) publish() {
	k := m.key()
	if m.published && k == m.lastKey {
		return
	}
	m.published = true
	m.lastKey = k

	snap := Snapshot{
		Phase:   m.phase,
		Adapter: m.adapterState,
		Target:  m.target,
		Session: m.session.clone(),
		Err:     m.lastErr,
	}

	m.mu.Lock()
	m.snapshot = snap
	subs := maps.Values(m.subs)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
