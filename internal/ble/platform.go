package ble

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// NewPlatformAdapter returns the tinygo adapter for this OS. On Linux it
// is paired with a BlueZ power source on adapterPath so that radio power
// transitions are reported; if BlueZ is unreachable the adapter falls
// back to assuming the radio is on once enabled. The returned close
// function releases the power source.
//
// Without a power source nothing reports the radio coming back on, so an
// adapter whose Enable failed stays Unsupported until Enable is called
// again. Use RetryEnable for that.
func NewPlatformAdapter(adapterPath string) (*TinyGoAdapter, func()) {
	if runtime.GOOS != "linux" {
		return NewTinyGoAdapter(nil), func() {}
	}
	power, err := NewBlueZPower(adapterPath)
	if err != nil {
		slog.Warn("[BLE] adapter power state unavailable", "error", err)
		return NewTinyGoAdapter(nil), func() {}
	}
	return NewTinyGoAdapter(power), func() { _ = power.Close() }
}

// Enabler is anything that can be (re)enabled, typically an Adapter.
type Enabler interface {
	Enable() error
}

// RetryEnable calls Enable every interval until it succeeds or ctx is
// done. A successful Enable reports the new adapter state, which is what
// lets a session start scanning once the radio becomes available.
func RetryEnable(ctx context.Context, e Enabler, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		err := e.Enable()
		if err == nil {
			slog.Info("[BLE] adapter enabled", "attempt", attempt)
			return nil
		}
		slog.Debug("[BLE] adapter still unavailable", "attempt", attempt, "error", err)
	}
}
