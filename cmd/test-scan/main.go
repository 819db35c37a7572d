// Command test-scan is a manual test for the BLE session manager.
// It scans, connects to the first accepted device and prints every
// session snapshot, without the control panel.
// Press Ctrl+C to exit.
//
// Usage:
//
//	go run ./cmd/test-scan [--prefix Fossleep] [--min-rssi -70] [--timeout 15s]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/chaz8081/fossleep-lamp/internal/ble"
	"github.com/chaz8081/fossleep-lamp/internal/session"
)

func main() {
	prefix := flag.String("prefix", "", "only connect to devices whose name starts with this")
	minRSSI := flag.Int("min-rssi", 0, "only connect to devices at or above this RSSI (dBm), 0 disables")
	timeout := flag.Duration("timeout", 0, "give up on a connection attempt after this long, 0 waits forever")
	adapterPath := flag.String("adapter", "/org/bluez/hci0", "BlueZ adapter object path (Linux only)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	adapter, closePower := ble.NewPlatformAdapter(*adapterPath)
	defer closePower()

	manager := session.NewManager(adapter, session.Options{
		Selector:       session.SelectorFor(*prefix, *minRSSI),
		ConnectTimeout: *timeout,
		QueueSize:      session.DefaultOptions().QueueSize,
	})
	manager.Subscribe(printSnapshot)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := adapter.Enable(); err != nil {
		fmt.Fprintf(os.Stderr, "enable adapter: %v (retrying)\n", err)
		go func() { _ = ble.RetryEnable(ctx, adapter, 2*time.Second) }()
	}

	fmt.Println("Waiting for the radio to power on, then scanning...")
	fmt.Println("Press Ctrl+C to exit.")

	start := time.Now()
	if err := manager.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "session: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDone after %s.\n", time.Since(start).Round(time.Millisecond))
}

func printSnapshot(snap session.Snapshot) {
	line := fmt.Sprintf("[%s] adapter=%s phase=%s", time.Now().Format("15:04:05.000"), snap.Adapter, snap.Phase)
	if snap.Target.ID != "" {
		line += fmt.Sprintf(" target=%s (%q, %d dBm)", snap.Target.ID, snap.Target.Name, snap.Target.RSSI)
	}
	if snap.Err != nil {
		line += fmt.Sprintf(" error=%v", snap.Err)
	}
	fmt.Println(line)

	if snap.Phase != session.PhaseReady || snap.Session == nil {
		return
	}
	fmt.Printf("  session %s\n", snap.Session.ID)
	for _, svc := range snap.Session.Services {
		fmt.Printf("  service %s\n", svc.UUID)
		chars := snap.Session.Characteristics[svc.UUID]
		uuids := make([]string, 0, len(chars))
		for _, c := range chars {
			uuids = append(uuids, c.UUID)
		}
		sort.Strings(uuids)
		for _, u := range uuids {
			fmt.Printf("    characteristic %s\n", u)
		}
	}
}
