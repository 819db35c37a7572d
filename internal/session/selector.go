package session

import (
	"strings"

	"github.com/chaz8081/fossleep-lamp/internal/ble"
)

// Selector decides whether a discovered device should be connected to.
// The first device a Selector accepts ends the scan.
type Selector func(ble.Device) bool

// FirstDevice accepts any device, so the first advertisement seen wins.
// No name, service or signal-strength matching is done, and nearby
// devices are not disambiguated.
func FirstDevice(ble.Device) bool { return true }

// NamePrefix accepts devices whose advertised name starts with prefix.
// Matching is case-insensitive.
func NamePrefix(prefix string) Selector {
	prefix = strings.ToLower(prefix)
	return func(d ble.Device) bool {
		return strings.HasPrefix(strings.ToLower(d.Name), prefix)
	}
}

// MinRSSI accepts devices heard at or above dbm.
func MinRSSI(dbm int) Selector {
	return func(d ble.Device) bool {
		return d.RSSI >= dbm
	}
}

// AllOf accepts a device only if every selector does. With no
// selectors it behaves like FirstDevice.
func AllOf(selectors ...Selector) Selector {
	return func(d ble.Device) bool {
		for _, s := range selectors {
			if !s(d) {
				return false
			}
		}
		return true
	}
}

// SelectorFor combines the optional name-prefix and signal-strength
// filters. An empty prefix and a zero threshold yield FirstDevice.
func SelectorFor(namePrefix string, minRSSI int) Selector {
	var selectors []Selector
	if namePrefix != "" {
		selectors = append(selectors, NamePrefix(namePrefix))
	}
	if minRSSI != 0 {
		selectors = append(selectors, MinRSSI(minRSSI))
	}
	if len(selectors) == 0 {
		return FirstDevice
	}
	return AllOf(selectors...)
}
