package ble

import (
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestPoweredFromSignal(t *testing.T) {
	path := dbus.ObjectPath(defaultHCIPath)
	tests := []struct {
		name        string
		sig         *dbus.Signal
		wantPowered bool
		wantOK      bool
	}{
		{
			name: "powered on",
			sig: &dbus.Signal{
				Name: propsSignal,
				Path: path,
				Body: []any{bluezAdapter, map[string]dbus.Variant{"Powered": dbus.MakeVariant(true)}, []string{}},
			},
			wantPowered: true,
			wantOK:      true,
		},
		{
			name: "powered off",
			sig: &dbus.Signal{
				Name: propsSignal,
				Path: path,
				Body: []any{bluezAdapter, map[string]dbus.Variant{"Powered": dbus.MakeVariant(false)}, []string{}},
			},
			wantPowered: false,
			wantOK:      true,
		},
		{
			name: "other property",
			sig: &dbus.Signal{
				Name: propsSignal,
				Path: path,
				Body: []any{bluezAdapter, map[string]dbus.Variant{"Discovering": dbus.MakeVariant(true)}, []string{}},
			},
		},
		{
			name: "device interface",
			sig: &dbus.Signal{
				Name: propsSignal,
				Path: path,
				Body: []any{"org.bluez.Device1", map[string]dbus.Variant{"Powered": dbus.MakeVariant(true)}, []string{}},
			},
		},
		{
			name: "other adapter",
			sig: &dbus.Signal{
				Name: propsSignal,
				Path: "/org/bluez/hci1",
				Body: []any{bluezAdapter, map[string]dbus.Variant{"Powered": dbus.MakeVariant(true)}, []string{}},
			},
		},
		{
			name: "short body",
			sig:  &dbus.Signal{Name: propsSignal, Path: path, Body: []any{bluezAdapter}},
		},
		{
			name: "nil signal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			powered, ok := poweredFromSignal(tt.sig, path)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if powered != tt.wantPowered {
				t.Errorf("powered = %v, want %v", powered, tt.wantPowered)
			}
		})
	}
}

func TestAdapterStateString(t *testing.T) {
	tests := map[AdapterState]string{
		StateUnknown:      "unknown",
		StateResetting:    "resetting",
		StateUnsupported:  "unsupported",
		StateUnauthorized: "unauthorized",
		StatePoweredOff:   "poweredOff",
		StatePoweredOn:    "poweredOn",
		AdapterState(42):  "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("AdapterState(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}

func TestParseUUIDsEmptyMeansAll(t *testing.T) {
	filter, err := parseUUIDs(nil)
	if err != nil {
		t.Fatalf("parseUUIDs(nil) error = %v", err)
	}
	if filter != nil {
		t.Errorf("parseUUIDs(nil) = %v, want nil filter", filter)
	}
}

func TestParseUUIDsRejectsGarbage(t *testing.T) {
	if _, err := parseUUIDs([]string{"not-a-uuid"}); err == nil {
		t.Error("parseUUIDs() should reject an invalid UUID")
	}
}

func TestParseUUIDs(t *testing.T) {
	filter, err := parseUUIDs([]string{"0000ffe0-0000-1000-8000-00805f9b34fb"})
	if err != nil {
		t.Fatalf("parseUUIDs() error = %v", err)
	}
	if len(filter) != 1 {
		t.Fatalf("len(filter) = %d, want 1", len(filter))
	}
	if got := filter[0].String(); got != "0000ffe0-0000-1000-8000-00805f9b34fb" {
		t.Errorf("filter[0] = %q", got)
	}
}
