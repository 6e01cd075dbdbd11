// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package avd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	units "github.com/docker/go-units"
	shellquote "github.com/kballard/go-shellquote"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultName   = "fastlane"
	DefaultDevice = "Nexus 5"

	killSettle       = 2 * time.Second
	bootPollInterval = 5 * time.Second

	// numericLocale keeps the emulator console parsing "9.18" with a dot.
	numericLocale = "LC_NUMERIC=C"
)

// LaunchConfig describes the AVD to create and how to prepare it once booted.
type LaunchConfig struct {
	SDKDir   string
	Package  string
	Name     string
	Device   string
	Location string // "<longitude> <latitude>"
	DemoMode bool
	// AVDConfig entries are merged into the generated config.ini.
	AVDConfig map[string]string
	// BootTimeout bounds the dev.bootcomplete poll. Zero polls forever.
	BootTimeout time.Duration
}

// DefaultLaunchConfig returns a config with the documented defaults filled in.
func DefaultLaunchConfig() LaunchConfig {
	return LaunchConfig{
		Name:     DefaultName,
		Device:   DefaultDevice,
		DemoMode: true,
	}
}

func (c LaunchConfig) validate() error {
	switch {
	case c.SDKDir == "":
		return missingConfig("ANDROID_SDK_DIR (pass the SDK location with --sdk-dir)")
	case c.Package == "":
		return missingConfig("system image package")
	case c.Name == "":
		return missingConfig("AVD name")
	case c.Device == "":
		return missingConfig("device profile")
	case c.BootTimeout < 0:
		return fmt.Errorf("negative boot timeout %s: %w", c.BootTimeout, errdefs.ErrInvalidArgument)
	}
	return nil
}

// locationArgs splits the location the way a shell would word-split it.
func (c LaunchConfig) locationArgs() ([]string, error) {
	if c.Location == "" {
		return nil, nil
	}
	args, err := shellquote.Split(c.Location)
	if err != nil {
		return nil, fmt.Errorf("location %q: %v: %w", c.Location, err, errdefs.ErrInvalidArgument)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("location %q is blank: %w", c.Location, errdefs.ErrInvalidArgument)
	}
	return args, nil
}

// LaunchResult summarizes a completed launch.
type LaunchResult struct {
	Name         string        `json:"name"`
	ConfigPath   string        `json:"config_path"`
	Overrides    int           `json:"overrides"`
	EmulatorPID  int           `json:"emulator_pid,omitempty"`
	BootPolls    int           `json:"boot_polls"`
	BootDuration time.Duration `json:"boot_duration_ns"`
	Location     string        `json:"location,omitempty"`
	DemoMode     bool          `json:"demo_mode"`
}

// Launcher brings up a freshly created AVD. Runner and Files are the only
// ways it touches the host, so tests can swap them for fakes.
type Launcher struct {
	Env      Env
	Runner   Runner
	Files    FileStore
	Platform Platform
	Sleep    func(ctx context.Context, d time.Duration) error
}

func NewLauncher(env Env) *Launcher {
	return &Launcher{
		Env:      env,
		Runner:   ExecRunner{},
		Files:    OSFileStore{},
		Platform: DetectPlatform(),
		Sleep:    sleepContext,
	}
}

// Launch runs the whole flow with a default Launcher.
func Launch(env Env, cfg LaunchConfig) (LaunchResult, error) {
	return NewLauncher(env).Launch(cfg)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Launch kills any running emulator, recreates the AVD, boots it and waits
// until dev.bootcomplete is 1, then applies location and demo mode.
func (l *Launcher) Launch(cfg LaunchConfig) (LaunchResult, error) {
	if err := cfg.validate(); err != nil {
		return LaunchResult{}, err
	}
	location, err := cfg.locationArgs()
	if err != nil {
		return LaunchResult{}, err
	}

	ctx, span := startSpan(
		l.Env,
		"avd.Launch",
		attribute.String("name", cfg.Name),
		attribute.String("package", cfg.Package),
		attribute.String("device", cfg.Device),
		attribute.String("platform", l.Platform.String()),
	)
	defer span.End()
	env := l.Env
	env.Context = ctx

	res := LaunchResult{
		Name:       cfg.Name,
		ConfigPath: env.ConfigPath(cfg.Name),
		Location:   cfg.Location,
		DemoMode:   cfg.DemoMode,
	}
	if err := l.launch(env, ToolsFor(cfg.SDKDir), cfg, location, &res); err != nil {
		recordSpanError(span, err)
		logEvent(env, "launch failed", "name", cfg.Name, "error", err)
		return res, err
	}
	span.SetAttributes(attribute.Int("boot_polls", res.BootPolls))
	logEvent(env, "launch finished", "name", cfg.Name, "boot_time", units.HumanDuration(res.BootDuration))
	return res, nil
}

func (l *Launcher) launch(env Env, tools Tools, cfg LaunchConfig, location []string, res *LaunchResult) error {
	if err := step(env, "avd.StopEmulator", func(env Env) error {
		return l.stopEmulator(env, tools)
	}); err != nil {
		return err
	}
	if err := step(env, "avd.CreateAVD", func(env Env) error {
		return l.createAVD(env, tools, cfg)
	}); err != nil {
		return err
	}
	if len(cfg.AVDConfig) > 0 {
		if _, err := ApplyConfig(env, l.Files, cfg.Name, cfg.AVDConfig); err != nil {
			return err
		}
		res.Overrides = len(cfg.AVDConfig)
	}
	if l.Platform == PlatformMac {
		if err := step(env, "avd.CheckHostCapability", l.checkHostCapability); err != nil {
			return err
		}
	}
	l.startEmulator(env, tools, cfg.Name, res)
	if err := step(env, "avd.WaitForBoot", func(env Env) error {
		return l.waitForBoot(env, tools, cfg.BootTimeout, res)
	}); err != nil {
		return err
	}
	if len(location) > 0 {
		if err := step(env, "avd.SetLocation", func(env Env) error {
			return l.setLocation(env, tools, location)
		}, attribute.String("location", cfg.Location)); err != nil {
			return err
		}
	}
	if cfg.DemoMode {
		if err := step(env, "avd.EnableDemoMode", func(env Env) error {
			return l.enableDemoMode(env, tools)
		}); err != nil {
			return err
		}
	}
	return nil
}

// stopEmulator asks any running emulator to quit and gives it time to
// release the AVD lock. The result of the kill is never checked.
func (l *Launcher) stopEmulator(env Env, tools Tools) error {
	logEvent(env, "emulator stop requested", "adb", tools.ADB)
	if _, err := l.Runner.Start(Command{Path: tools.ADB, Args: []string{"emu", "kill"}}); err != nil {
		logEvent(env, "emulator stop spawn failed", "error", err)
	}
	return l.Sleep(spanContext(env), killSettle)
}

func (l *Launcher) createAVD(env Env, tools Tools, cfg LaunchConfig) error {
	args := []string{"create", "avd", "-n", cfg.Name, "-f", "-k", cfg.Package, "-d", cfg.Device}
	logEvent(env, "avd create start", "name", cfg.Name, "package", cfg.Package, "device", cfg.Device)
	_, err := l.Runner.Run(spanContext(env), Command{
		Path:   tools.AvdManager,
		Args:   args,
		Stdin:  strings.NewReader("no\n"),
		Output: newCommandLogWriter(env, "avdmanager", args),
	})
	if err != nil {
		return fmt.Errorf("avdmanager create: %w", err)
	}
	logEvent(env, "avd create finished", "name", cfg.Name, "config_path", env.ConfigPath(cfg.Name))
	return nil
}

// checkHostCapability looks for the Intel HAXM kernel extension on macOS.
func (l *Launcher) checkHostCapability(env Env) error {
	out, err := l.Runner.Run(spanContext(env), Command{Path: "kextstat"})
	if err != nil {
		return err
	}
	if !strings.Contains(out, "intel") {
		return fmt.Errorf("please install the HAXM-Extension: %w", errdefs.ErrFailedPrecondition)
	}
	return nil
}

// startEmulator spawns the emulator in the background. A failed spawn only
// gets logged; the boot poll is what notices an emulator that never came up.
func (l *Launcher) startEmulator(env Env, tools Tools, name string, res *LaunchResult) {
	_, span := startSpan(env, "avd.StartEmulator", attribute.String("name", name))
	defer span.End()
	logEvent(env, "emulator start requested", "name", name)
	proc, err := l.Runner.Start(Command{
		Path: tools.Emulator,
		Args: []string{"@" + name},
		Env:  []string{numericLocale},
	})
	if err != nil {
		recordSpanError(span, err)
		logEvent(env, "emulator start failed", "name", name, "error", err)
		return
	}
	res.EmulatorPID = proc.PID
	span.SetAttributes(attribute.Int("pid", proc.PID))
	logEvent(env, "emulator started", "name", name, "pid", proc.PID)
}

func (l *Launcher) waitForBoot(env Env, tools Tools, timeout time.Duration, res *LaunchResult) error {
	ctx := spanContext(env)
	if _, err := l.Runner.Run(ctx, Command{Path: tools.ADB, Args: []string{"-e", "wait-for-device"}}); err != nil {
		return fmt.Errorf("wait for device: %w", err)
	}
	logEvent(env, "device attached")

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	timedOut := func(err error) error {
		if timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logEvent(env, "wait for boot timeout", "timeout", timeout.String(), "polls", res.BootPolls)
			return fmt.Errorf("%w after %s", ErrBootTimeout, timeout)
		}
		return err
	}

	start := time.Now()
	bootQuery := Command{Path: tools.ADB, Args: []string{"-e", "shell", "getprop", "dev.bootcomplete"}}
	for {
		res.BootPolls++
		out, err := l.Runner.Run(ctx, bootQuery)
		if err != nil {
			return timedOut(fmt.Errorf("query dev.bootcomplete: %w", err))
		}
		if strings.TrimSpace(out) == "1" {
			res.BootDuration = time.Since(start)
			trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("boot_completed", true))
			logEvent(env, "boot completed", "polls", res.BootPolls, "boot_time", units.HumanDuration(res.BootDuration))
			return nil
		}
		if err := l.Sleep(ctx, bootPollInterval); err != nil {
			return timedOut(err)
		}
	}
}

func (l *Launcher) setLocation(env Env, tools Tools, location []string) error {
	logEvent(env, "set location", "location", strings.Join(location, " "))
	_, err := l.Runner.Run(spanContext(env), Command{
		Path: tools.ADB,
		Args: append([]string{"emu", "geo", "fix"}, location...),
		Env:  []string{numericLocale},
	})
	return err
}

func (l *Launcher) enableDemoMode(env Env, tools Tools) error {
	logEvent(env, "set in demo mode")
	ctx := spanContext(env)
	if _, err := l.Runner.Run(ctx, Command{
		Path: tools.ADB,
		Args: []string{"-e", "shell", "settings", "put", "global", "sysui_demo_allowed", "1"},
	}); err != nil {
		return err
	}
	_, err := l.Runner.Run(ctx, Command{
		Path: tools.ADB,
		Args: []string{"-e", "shell", "am", "broadcast", "-a", "com.android.systemui.demo", "-e", "command", "clock", "-e", "hhmm", "0700"},
	})
	return err
}

// Configure merges overrides into the config.ini of an existing AVD.
func (l *Launcher) Configure(name string, overrides map[string]string) (string, error) {
	if name == "" {
		return "", missingConfig("AVD name")
	}
	if len(overrides) == 0 {
		return "", missingConfig("configuration overrides")
	}
	return ApplyConfig(l.Env, l.Files, name, overrides)
}
