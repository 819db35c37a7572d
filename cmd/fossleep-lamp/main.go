package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/chaz8081/fossleep-lamp/internal/ble"
	"github.com/chaz8081/fossleep-lamp/internal/config"
	"github.com/chaz8081/fossleep-lamp/internal/panel"
	"github.com/chaz8081/fossleep-lamp/internal/session"
	"github.com/chaz8081/fossleep-lamp/internal/tui"
)

const enableRetryInterval = 5 * time.Second

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/fossleep-lamp/config.yaml)")
	initConfig := flag.Bool("init-config", false, "write a default config file and exit")
	flag.Parse()

	if *initConfig {
		path, err := config.WriteDefault()
		if err != nil {
			log.Fatalf("init-config: %v", err)
		}
		if path == "" {
			fmt.Printf("Config already exists at %s\n", config.DefaultConfigPath())
			return
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return
	}

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	// The TUI owns the terminal, so logs go to a file.
	logFile, err := openLog(cfg)
	if err != nil {
		log.Fatalf("log file: %v", err)
	}
	defer logFile.Close()

	lampColor, err := cfg.UI.ParsedColor()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	adapter, closePower := ble.NewPlatformAdapter(cfg.Scan.AdapterPath)
	defer closePower()

	manager := session.NewManager(adapter, session.Options{
		Selector:       session.SelectorFor(cfg.Scan.NamePrefix, cfg.Scan.MinRSSI),
		ConnectTimeout: cfg.Scan.ConnectTimeout,
		QueueSize:      session.DefaultOptions().QueueSize,
	})

	store := panel.NewStore(panel.Options{
		Color:          toRGBA(lampColor),
		Intensity:      cfg.UI.Intensity,
		Now:            time.Now(),
		ReportFailures: cfg.UI.ReportFailures,
	})

	model := tui.New(tui.Deps{
		Store:          store,
		Scanner:        manager,
		SplashDuration: cfg.Splash.Duration,
	})
	p := tea.NewProgram(model, tea.WithAltScreen())

	// p.Send blocks until the UI loop reads the message, so snapshots are
	// handed over off the manager's goroutine.
	unsubscribe := manager.SubscribeLatest(func(snap session.Snapshot) {
		p.Send(tui.SessionMsg{Snapshot: snap})
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())

	// Run picks up the adapter state at startup, so a radio that is
	// already on starts scanning right away. A radio that is unavailable
	// now starts scanning once a later Enable succeeds.
	if err := adapter.Enable(); err != nil {
		slog.Error("[BLE] failed to enable adapter, retrying", "error", err)
		go func() { _ = ble.RetryEnable(ctx, adapter, enableRetryInterval) }()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := manager.Run(ctx); err != nil {
			slog.Error("[SESSION] manager stopped", "error", err)
		}
	}()

	slog.Info("fossleep-lamp started",
		"config", *configPath,
		"name_prefix", cfg.Scan.NamePrefix,
		"min_rssi", cfg.Scan.MinRSSI,
		"connect_timeout", cfg.Scan.ConnectTimeout,
	)

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		log.Fatalf("tui: %v", err)
	}

	cancel()
	<-done
	slog.Info("fossleep-lamp stopped")
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return cfg, nil
	}

	// No config file, use defaults
	return config.Default(), nil
}

// openLog routes the default slog logger to cfg.LogFile.
func openLog(cfg *config.Config) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.LogFile, err)
	}
	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	slog.SetDefault(slog.New(handler))
	return f, nil
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}
