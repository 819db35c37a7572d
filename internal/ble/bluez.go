package ble

import (
	"fmt"
	"slices"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	bluezBusName   = "org.bluez"
	bluezAdapter   = "org.bluez.Adapter1"
	propsIface     = "org.freedesktop.DBus.Properties"
	propsSignal    = "org.freedesktop.DBus.Properties.PropertiesChanged"
	defaultHCIPath = "/org/bluez/hci0"
)

// BlueZPower reads and watches the Powered property of a BlueZ adapter
// over the system D-Bus. tinygo/bluetooth has no power-state callback on
// Linux, so this fills the gap.
type BlueZPower struct {
	conn *dbus.Conn
	path dbus.ObjectPath

	closeOnce sync.Once
	signals   chan *dbus.Signal
}

// NewBlueZPower connects to the system bus and checks that BlueZ is
// running. An empty adapterPath selects hci0.
func NewBlueZPower(adapterPath string) (*BlueZPower, error) {
	if adapterPath == "" {
		adapterPath = defaultHCIPath
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("ble: connect to system bus: %w", err)
	}
	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ble: list bus names: %w", err)
	}
	if !slices.Contains(names, bluezBusName) {
		conn.Close()
		return nil, fmt.Errorf("ble: %s not found on system bus, is bluetooth.service running?", bluezBusName)
	}
	return &BlueZPower{conn: conn, path: dbus.ObjectPath(adapterPath)}, nil
}

// Powered reports the adapter's current Powered property.
func (b *BlueZPower) Powered() (bool, error) {
	var v dbus.Variant
	obj := b.conn.Object(bluezBusName, b.path)
	if err := obj.Call(propsIface+".Get", 0, bluezAdapter, "Powered").Store(&v); err != nil {
		return false, fmt.Errorf("ble: read Powered: %w", err)
	}
	powered, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("ble: Powered is %T, not bool", v.Value())
	}
	return powered, nil
}

// Watch subscribes to PropertiesChanged on the adapter and invokes
// callback whenever Powered flips. The callback runs on a dedicated
// goroutine that exits on Close.
func (b *BlueZPower) Watch(callback func(powered bool)) error {
	rule := fmt.Sprintf("type='signal',interface='%s',member='PropertiesChanged',path='%s'", propsIface, b.path)
	if call := b.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule); call.Err != nil {
		return fmt.Errorf("ble: add match: %w", call.Err)
	}
	b.signals = make(chan *dbus.Signal, 16)
	b.conn.Signal(b.signals)
	go func() {
		for sig := range b.signals {
			if powered, ok := poweredFromSignal(sig, b.path); ok {
				callback(powered)
			}
		}
	}()
	return nil
}

// Close releases the D-Bus connection and stops the watcher.
func (b *BlueZPower) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.signals != nil {
			b.conn.RemoveSignal(b.signals)
			close(b.signals)
		}
		err = b.conn.Close()
	})
	return err
}

// poweredFromSignal extracts the Powered value from an Adapter1
// PropertiesChanged signal. ok is false for any other signal.
func poweredFromSignal(sig *dbus.Signal, path dbus.ObjectPath) (powered bool, ok bool) {
	if sig == nil || sig.Name != propsSignal || sig.Path != path {
		return false, false
	}
	// Body: [interface_name string, changed_props map[string]Variant, invalidated []string]
	if len(sig.Body) < 2 {
		return false, false
	}
	iface, isStr := sig.Body[0].(string)
	if !isStr || iface != bluezAdapter {
		return false, false
	}
	changed, isMap := sig.Body[1].(map[string]dbus.Variant)
	if !isMap {
		return false, false
	}
	v, found := changed["Powered"]
	if !found {
		return false, false
	}
	powered, ok = v.Value().(bool)
	return powered, ok
}

var _ PowerSource = (*BlueZPower)(nil)
