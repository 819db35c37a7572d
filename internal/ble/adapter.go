// Package ble provides the Bluetooth Low Energy layer for talking to a
// Fossleep lamp. It defines the adapter abstraction the session manager
// drives, a tinygo-org/bluetooth implementation, and a BlueZ power-state
// source for Linux.
package ble

import (
	"context"
	"errors"
)

// Sentinel errors returned by adapters.
var (
	ErrNotPoweredOn   = errors.New("ble: adapter is not powered on")
	ErrScanInProgress = errors.New("ble: scan already in progress")
)

// AdapterState is the power/availability state of the local BLE radio.
type AdapterState int

const (
	StateUnknown AdapterState = iota
	StateResetting
	StateUnsupported
	StateUnauthorized
	StatePoweredOff
	StatePoweredOn
)

func (s AdapterState) String() string {
	switch s {
	case StateResetting:
		return "resetting"
	case StateUnsupported:
		return "unsupported"
	case StateUnauthorized:
		return "unauthorized"
	case StatePoweredOff:
		return "poweredOff"
	case StatePoweredOn:
		return "poweredOn"
	default:
		return "unknown"
	}
}

// Device represents a discovered BLE peripheral.
// On macOS, ID is a CoreBluetooth UUID rather than a MAC address.
type Device struct {
	ID   string
	Name string
	RSSI int
}

// ServiceDescriptor identifies a discovered GATT service.
type ServiceDescriptor struct {
	UUID string
}

// CharacteristicDescriptor identifies a discovered GATT characteristic.
type CharacteristicDescriptor struct {
	UUID string
}

// Service is a discovered GATT service on a connected peripheral.
type Service interface {
	Descriptor() ServiceDescriptor
	// DiscoverCharacteristics finds characteristics by UUID. No UUIDs
	// means all characteristics of the service.
	DiscoverCharacteristics(uuids ...string) ([]CharacteristicDescriptor, error)
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// DiscoverServices finds services by UUID. No UUIDs means all services.
	DiscoverServices(uuids ...string) ([]Service, error)
	// Disconnect terminates the connection.
	Disconnect() error
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable initializes the BLE stack.
	Enable() error
	// State reports the current power state.
	State() AdapterState
	// OnStateChange registers a callback for power state transitions.
	OnStateChange(callback func(AdapterState))
	// Scan reports every advertisement to callback until StopScan is
	// called or ctx is cancelled. No service filter is applied.
	Scan(ctx context.Context, callback func(Device)) error
	// StopScan ends a running scan.
	StopScan() error
	// Connect establishes a connection to the given device.
	Connect(ctx context.Context, device Device) (Connection, error)
	// OnDisconnect registers a callback invoked when a peripheral drops.
	OnDisconnect(callback func(Device))
}
