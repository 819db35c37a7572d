package session

import (
	"testing"

	"github.com/chaz8081/fossleep-lamp/internal/ble"
)

func TestSelectors(t *testing.T) {
	lamp := ble.Device{ID: "1", Name: "Fossleep Lamp", RSSI: -60}
	unnamed := ble.Device{ID: "2", RSSI: -90}

	tests := []struct {
		name     string
		selector Selector
		device   ble.Device
		want     bool
	}{
		{"first device accepts anything", FirstDevice, unnamed, true},
		{"prefix match", NamePrefix("fossleep"), lamp, true},
		{"prefix case-insensitive", NamePrefix("FOSS"), lamp, true},
		{"prefix miss", NamePrefix("hue"), lamp, false},
		{"prefix on unnamed device", NamePrefix("foss"), unnamed, false},
		{"empty prefix accepts unnamed", NamePrefix(""), unnamed, true},
		{"rssi at threshold", MinRSSI(-60), lamp, true},
		{"rssi below threshold", MinRSSI(-80), unnamed, false},
		{"all of both pass", AllOf(NamePrefix("foss"), MinRSSI(-70)), lamp, true},
		{"all of one fails", AllOf(NamePrefix("foss"), MinRSSI(-50)), lamp, false},
		{"all of nothing", AllOf(), unnamed, true},
		{"selector for nothing", SelectorFor("", 0), unnamed, true},
		{"selector for prefix", SelectorFor("foss", 0), unnamed, false},
		{"selector for rssi", SelectorFor("", -70), lamp, true},
		{"selector for both", SelectorFor("foss", -50), lamp, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.selector(tt.device); got != tt.want {
				t.Errorf("selector(%+v) = %v, want %v", tt.device, got, tt.want)
			}
		})
	}
}
