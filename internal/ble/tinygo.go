package ble

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tinygo.org/x/bluetooth"
)

// PowerSource reports the radio power state where the BLE stack itself
// does not expose it.
type PowerSource interface {
	Powered() (bool, error)
	// Watch invokes callback on every power transition until Close.
	Watch(callback func(powered bool)) error
	Close() error
}

// TinyGoAdapter wraps tinygo-org/bluetooth.
// On macOS, device IDs are CoreBluetooth UUIDs (not MAC addresses).
type TinyGoAdapter struct {
	adapter *bluetooth.Adapter
	power   PowerSource

	// mu protects the fields below.
	mu           sync.Mutex
	state        AdapterState
	stateCb      func(AdapterState)
	disconnectCb func(Device)
	scanning     bool
}

// NewTinyGoAdapter creates a BLE adapter on the default radio. power may
// be nil, in which case the adapter is considered powered on as soon as
// Enable succeeds.
func NewTinyGoAdapter(power PowerSource) *TinyGoAdapter {
	return &TinyGoAdapter{
		adapter: bluetooth.DefaultAdapter,
		power:   power,
		state:   StateUnknown,
	}
}

func (a *TinyGoAdapter) Enable() error {
	if err := a.adapter.Enable(); err != nil {
		a.setState(StateUnsupported)
		return fmt.Errorf("ble: enable adapter: %w", err)
	}

	// tinygo/bluetooth fires this with connected=false when a peripheral
	// drops, on every platform that supports central mode.
	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		a.mu.Lock()
		cb := a.disconnectCb
		a.mu.Unlock()
		if cb != nil {
			cb(Device{ID: device.Address.String()})
		}
	})

	if a.power == nil {
		a.setState(StatePoweredOn)
		return nil
	}

	powered, err := a.power.Powered()
	if err != nil {
		slog.Warn("[BLE] cannot read adapter power state", "error", err)
		a.setState(StateUnknown)
	} else {
		a.setState(poweredState(powered))
	}
	if err := a.power.Watch(func(powered bool) {
		a.setState(poweredState(powered))
	}); err != nil {
		slog.Warn("[BLE] cannot watch adapter power state", "error", err)
	}
	return nil
}

func poweredState(powered bool) AdapterState {
	if powered {
		return StatePoweredOn
	}
	return StatePoweredOff
}

func (a *TinyGoAdapter) setState(s AdapterState) {
	a.mu.Lock()
	changed := a.state != s
	a.state = s
	cb := a.stateCb
	a.mu.Unlock()
	if changed && cb != nil {
		cb(s)
	}
}

func (a *TinyGoAdapter) State() AdapterState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *TinyGoAdapter) OnStateChange(cb func(AdapterState)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stateCb = cb
}

func (a *TinyGoAdapter) OnDisconnect(cb func(Device)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disconnectCb = cb
}

func (a *TinyGoAdapter) Scan(ctx context.Context, cb func(Device)) error {
	a.mu.Lock()
	if a.state != StatePoweredOn {
		a.mu.Unlock()
		return ErrNotPoweredOn
	}
	if a.scanning {
		a.mu.Unlock()
		return ErrScanInProgress
	}
	a.scanning = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.scanning = false
		a.mu.Unlock()
	}()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			a.adapter.StopScan()
		case <-done:
		}
	}()

	err := a.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		cb(Device{
			ID:   result.Address.String(),
			Name: result.LocalName(),
			RSSI: int(result.RSSI),
		})
	})
	close(done)

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("ble: scan: %w", err)
	}
	return nil
}

func (a *TinyGoAdapter) StopScan() error {
	if err := a.adapter.StopScan(); err != nil {
		return fmt.Errorf("ble: stop scan: %w", err)
	}
	return nil
}

func (a *TinyGoAdapter) Connect(ctx context.Context, device Device) (Connection, error) {
	var addr bluetooth.Address
	addr.Set(device.ID)

	// tinygo/bluetooth's Connect blocks with its own internal timeout.
	// It cannot be cancelled, so ctx only bounds how long we wait for it.
	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		d, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
		ch <- connectResult{d, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("ble: connect to %s: %w", device.ID, ctx.Err())
	case result := <-ch:
		if result.err != nil {
			return nil, fmt.Errorf("ble: connect to %s: %w", device.ID, result.err)
		}
		return &tinyGoConnection{device: result.device}, nil
	}
}

// Compile-time check that TinyGoAdapter implements Adapter.
var _ Adapter = (*TinyGoAdapter)(nil)

type tinyGoConnection struct {
	device bluetooth.Device
}

func (c *tinyGoConnection) DiscoverServices(uuids ...string) ([]Service, error) {
	filter, err := parseUUIDs(uuids)
	if err != nil {
		return nil, err
	}
	svcs, err := c.device.DiscoverServices(filter)
	if err != nil {
		return nil, fmt.Errorf("ble: discover services: %w", err)
	}
	out := make([]Service, 0, len(svcs))
	for i := range svcs {
		out = append(out, &tinyGoService{svc: svcs[i]})
	}
	return out, nil
}

func (c *tinyGoConnection) Disconnect() error {
	return c.device.Disconnect()
}

type tinyGoService struct {
	svc bluetooth.DeviceService
}

func (s *tinyGoService) Descriptor() ServiceDescriptor {
	return ServiceDescriptor{UUID: s.svc.UUID().String()}
}

func (s *tinyGoService) DiscoverCharacteristics(uuids ...string) ([]CharacteristicDescriptor, error) {
	filter, err := parseUUIDs(uuids)
	if err != nil {
		return nil, err
	}
	chars, err := s.svc.DiscoverCharacteristics(filter)
	if err != nil {
		return nil, fmt.Errorf("ble: discover characteristics: %w", err)
	}
	out := make([]CharacteristicDescriptor, 0, len(chars))
	for _, ch := range chars {
		out = append(out, CharacteristicDescriptor{UUID: ch.UUID().String()})
	}
	return out, nil
}

// parseUUIDs converts UUID strings to a tinygo filter. An empty input
// yields a nil filter, which tinygo treats as "everything".
func parseUUIDs(uuids []string) ([]bluetooth.UUID, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	out := make([]bluetooth.UUID, 0, len(uuids))
	for _, s := range uuids {
		u, err := bluetooth.ParseUUID(s)
		if err != nil {
			return nil, fmt.Errorf("ble: parse UUID %q: %w", s, err)
		}
		out = append(out, u)
	}
	return out, nil
}
