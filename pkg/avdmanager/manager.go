// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

// Package avdmanager provides a Go library for creating and booting an
// Android Virtual Device ready for screenshot and UI test pipelines.
package avdmanager

import (
	"context"
	"time"

	"github.com/forkbombeu/avdlaunch/internal/avd"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "avdlaunch/avdmanager"

// Manager provides high-level AVD launch operations.
type Manager struct {
	env avd.Env
}

// New creates a new Manager with auto-detected environment.
func New() *Manager {
	return &Manager{
		env: avd.Detect(),
	}
}

// NewWithCorrelationID creates a new Manager with a correlation ID for structured logs.
func NewWithCorrelationID(correlationID string) *Manager {
	return NewWithContextAndCorrelationID(context.Background(), correlationID)
}

// NewWithContext creates a new Manager whose context parents spans and
// cancels the boot wait.
func NewWithContext(ctx context.Context) *Manager {
	return NewWithContextAndCorrelationID(ctx, "")
}

// NewWithContextAndCorrelationID creates a new Manager with a custom context and correlation ID.
func NewWithContextAndCorrelationID(ctx context.Context, correlationID string) *Manager {
	env := avd.Detect()
	if ctx == nil {
		ctx = context.Background()
	}
	env.Context = ctx
	env.CorrelationID = correlationID
	return &Manager{
		env: env,
	}
}

// NewWithEnv creates a new Manager with custom environment configuration.
func NewWithEnv(env Environment) *Manager {
	ctx := env.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return &Manager{
		env: avd.Env{
			SDKRoot:       env.SDKRoot,
			AVDHome:       env.AVDHome,
			CorrelationID: env.CorrelationID,
			Context:       ctx,
		},
	}
}

// Environment holds paths and log/trace context.
type Environment struct {
	SDKRoot       string          // Default SDK root when LaunchOptions.SDKDir is empty
	AVDHome       string          // Where avdmanager keeps <name>.avd (default ~/.android/avd)
	CorrelationID string          // Correlation ID for log enrichment
	Context       context.Context // Context for tracing and cancellation
}

// LaunchOptions describes the emulator to create and boot.
type LaunchOptions struct {
	SDKDir      string            // Android SDK root (default: Environment.SDKRoot)
	Package     string            // System image, e.g. "system-images;android-24;google_apis;x86_64" (required)
	Name        string            // AVD name (default: "fastlane")
	Device      string            // Device profile (default: "Nexus 5")
	Location    string            // "<longitude> <latitude>" passed to geo fix (optional)
	DemoMode    *bool             // Enable System UI demo mode (default: true)
	AVDConfig   map[string]string // Entries merged into config.ini (optional)
	BootTimeout time.Duration     // 0 waits for boot forever
}

// LaunchResult describes a booted emulator.
type LaunchResult struct {
	Name         string        // AVD name
	ConfigPath   string        // Path to the AVD's config.ini
	Overrides    int           // Number of config.ini entries overridden
	EmulatorPID  int           // PID of the detached emulator process, 0 if unknown
	BootPolls    int           // How many times dev.bootcomplete was queried
	BootDuration time.Duration // Time from first poll to boot completion
	Location     string        // Coordinates sent with geo fix, empty when skipped
	DemoMode     bool          // Whether System UI demo mode was enabled
}

func launchResult(res avd.LaunchResult) LaunchResult {
	return LaunchResult{
		Name:         res.Name,
		ConfigPath:   res.ConfigPath,
		Overrides:    res.Overrides,
		EmulatorPID:  res.EmulatorPID,
		BootPolls:    res.BootPolls,
		BootDuration: res.BootDuration,
		Location:     res.Location,
		DemoMode:     res.DemoMode,
	}
}

func (m *Manager) launchConfig(opts LaunchOptions) avd.LaunchConfig {
	cfg := avd.DefaultLaunchConfig()
	cfg.SDKDir = m.env.SDKRoot
	if opts.SDKDir != "" {
		cfg.SDKDir = opts.SDKDir
	}
	if opts.Name != "" {
		cfg.Name = opts.Name
	}
	if opts.Device != "" {
		cfg.Device = opts.Device
	}
	if opts.DemoMode != nil {
		cfg.DemoMode = *opts.DemoMode
	}
	cfg.Package = opts.Package
	cfg.Location = opts.Location
	cfg.AVDConfig = opts.AVDConfig
	cfg.BootTimeout = opts.BootTimeout
	return cfg
}

// Launch stops any running emulator, recreates the AVD and blocks until it
// has booted, then applies location and demo mode.
func (m *Manager) Launch(opts LaunchOptions) (LaunchResult, error) {
	cfg := m.launchConfig(opts)
	ctx, span := m.startSpan("avdmanager.Launch", attribute.String("avd_name", cfg.Name))
	defer span.End()
	env := m.env
	env.Context = ctx

	res, err := avd.Launch(env, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return LaunchResult{}, err
	}
	return launchResult(res), nil
}

// Configure merges entries into the config.ini of an existing AVD and
// returns the file's path.
func (m *Manager) Configure(name string, entries map[string]string) (string, error) {
	ctx, span := m.startSpan("avdmanager.Configure", attribute.String("avd_name", name))
	defer span.End()
	env := m.env
	env.Context = ctx

	path, err := avd.NewLauncher(env).Configure(name, entries)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return path, err
}

// ConfigPath returns where the named AVD's config.ini lives.
func (m *Manager) ConfigPath(name string) string {
	return m.env.ConfigPath(name)
}

func (m *Manager) startSpan(name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if m.env.CorrelationID != "" {
		attrs = append(attrs, attribute.String("correlation_id", m.env.CorrelationID))
	}
	ctx := m.env.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}
