package session

import "github.com/chaz8081/fossleep-lamp/internal/ble"

// Event is a tagged input to the session state machine. Platform
// callbacks and adapter goroutines deliver events through Manager.Post;
// only the Run loop consumes them.
type Event interface {
	isEvent()
}

// AdapterStateChanged reports a radio power transition.
type AdapterStateChanged struct {
	State ble.AdapterState
}

// DeviceDiscovered reports one advertisement seen during a scan.
type DeviceDiscovered struct {
	Device ble.Device
}

// Connected reports a successful connection attempt.
type Connected struct {
	Device ble.Device
	Conn   ble.Connection
}

// ConnectFailed reports a failed connection attempt.
type ConnectFailed struct {
	Device ble.Device
	Err    error
}

// ServicesDiscovered carries the result of service discovery for a session.
type ServicesDiscovered struct {
	SessionID string
	Services  []ble.Service
	Err       error
}

// CharacteristicsDiscovered carries the result of characteristic
// discovery for one service of a session.
type CharacteristicsDiscovered struct {
	SessionID       string
	Service         ble.ServiceDescriptor
	Characteristics []ble.CharacteristicDescriptor
	Err             error
}

// Disconnected reports that a peripheral dropped.
type Disconnected struct {
	Device ble.Device
}

// scanEnded is posted when an adapter Scan call returns. gen identifies
// the scan so that a stale end cannot cancel a newer scan.
type scanEnded struct {
	gen uint64
	err error
}

func (AdapterStateChanged) isEvent()       {}
func (DeviceDiscovered) isEvent()          {}
func (Connected) isEvent()                 {}
func (ConnectFailed) isEvent()             {}
func (ServicesDiscovered) isEvent()        {}
func (CharacteristicsDiscovered) isEvent() {}
func (Disconnected) isEvent()              {}
func (scanEnded) isEvent()                 {}
