// Package bletest provides an in-memory ble.Adapter for tests.
package bletest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/chaz8081/fossleep-lamp/internal/ble"
)

// ServiceSpec describes a service the fake peripheral exposes.
type ServiceSpec struct {
	UUID            string
	Characteristics []string
	Err             error // returned from DiscoverCharacteristics
}

// Adapter simulates a BLE radio. Every scan advertises Devices in order
// and then blocks until StopScan or context cancellation.
type Adapter struct {
	// Configuration. Set before the adapter is handed to a manager.
	Devices     []ble.Device
	ConnectErr  error
	ConnectHang bool // Connect blocks until ctx is done
	// ConnectGate, if set, holds Connect until it is closed. The attempt
	// then succeeds even if ctx was cancelled meanwhile.
	ConnectGate chan struct{}
	ServicesErr error
	Services    []ServiceSpec

	mu           sync.Mutex
	state        ble.AdapterState
	stateCb      func(ble.AdapterState)
	disconnectCb func(ble.Device)
	stopCh       chan struct{}
	scans        int
	stops        int
	connects     []ble.Device
	connection   *Connection // most recent connection for test assertions
}

// NewAdapter returns a fake adapter in the given state.
func NewAdapter(state ble.AdapterState, devices ...ble.Device) *Adapter {
	return &Adapter{state: state, Devices: devices}
}

func (a *Adapter) Enable() error { return nil }

func (a *Adapter) State() ble.AdapterState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// SetState changes the power state and fires the state callback.
func (a *Adapter) SetState(s ble.AdapterState) {
	a.mu.Lock()
	a.state = s
	cb := a.stateCb
	a.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

func (a *Adapter) OnStateChange(cb func(ble.AdapterState)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stateCb = cb
}

func (a *Adapter) OnDisconnect(cb func(ble.Device)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disconnectCb = cb
}

// SimulateDisconnect fires the disconnect callback for d.
func (a *Adapter) SimulateDisconnect(d ble.Device) {
	a.mu.Lock()
	cb := a.disconnectCb
	a.mu.Unlock()
	if cb != nil {
		cb(d)
	}
}

func (a *Adapter) Scan(ctx context.Context, cb func(ble.Device)) error {
	a.mu.Lock()
	if a.state != ble.StatePoweredOn {
		a.mu.Unlock()
		return ble.ErrNotPoweredOn
	}
	if a.stopCh != nil {
		a.mu.Unlock()
		return ble.ErrScanInProgress
	}
	stop := make(chan struct{})
	a.stopCh = stop
	a.scans++
	devices := append([]ble.Device(nil), a.Devices...)
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		if a.stopCh == stop {
			a.stopCh = nil
		}
		a.mu.Unlock()
	}()

	for _, d := range devices {
		select {
		case <-stop:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}
		cb(d)
	}

	select {
	case <-stop:
	case <-ctx.Done():
	}
	return nil
}

func (a *Adapter) StopScan() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopCh == nil {
		return fmt.Errorf("bletest: not scanning")
	}
	a.stops++
	close(a.stopCh)
	a.stopCh = nil
	return nil
}

func (a *Adapter) Connect(ctx context.Context, d ble.Device) (ble.Connection, error) {
	a.mu.Lock()
	a.connects = append(a.connects, d)
	hang, connectErr, gate := a.ConnectHang, a.ConnectErr, a.ConnectGate
	a.mu.Unlock()

	if gate != nil {
		<-gate
	}

	if hang {
		<-ctx.Done()
		return nil, fmt.Errorf("bletest: connect to %s: %w", d.ID, ctx.Err())
	}
	if connectErr != nil {
		return nil, connectErr
	}

	conn := &Connection{services: a.Services, servicesErr: a.ServicesErr}
	a.mu.Lock()
	a.connection = conn
	a.mu.Unlock()
	return conn, nil
}

// Scans returns how many scans have started.
func (a *Adapter) Scans() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scans
}

// Scanning reports whether a scan is in flight.
func (a *Adapter) Scanning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopCh != nil
}

// Stops returns how many times StopScan ended a running scan.
func (a *Adapter) Stops() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stops
}

// Connects returns every device a connection was attempted to, in order.
func (a *Adapter) Connects() []ble.Device {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ble.Device(nil), a.connects...)
}

// LatestConnection returns the most recently created connection.
func (a *Adapter) LatestConnection() *Connection {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connection
}

var _ ble.Adapter = (*Adapter)(nil)

// Connection is a fake peripheral connection.
type Connection struct {
	services    []ServiceSpec
	servicesErr error

	mu           sync.Mutex
	disconnected bool
}

func (c *Connection) DiscoverServices(uuids ...string) ([]ble.Service, error) {
	if c.servicesErr != nil {
		return nil, c.servicesErr
	}
	var out []ble.Service
	for _, s := range c.services {
		if len(uuids) > 0 && !slices.Contains(uuids, s.UUID) {
			continue
		}
		out = append(out, service{spec: s})
	}
	return out, nil
}

func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	return nil
}

// Disconnected reports whether Disconnect was called.
func (c *Connection) Disconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

type service struct {
	spec ServiceSpec
}

func (s service) Descriptor() ble.ServiceDescriptor {
	return ble.ServiceDescriptor{UUID: s.spec.UUID}
}

func (s service) DiscoverCharacteristics(uuids ...string) ([]ble.CharacteristicDescriptor, error) {
	if s.spec.Err != nil {
		return nil, s.spec.Err
	}
	var out []ble.CharacteristicDescriptor
	for _, c := range s.spec.Characteristics {
		if len(uuids) > 0 && !slices.Contains(uuids, c) {
			continue
		}
		out = append(out, ble.CharacteristicDescriptor{UUID: c})
	}
	return out, nil
}
