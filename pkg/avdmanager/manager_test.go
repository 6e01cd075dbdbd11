// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package avdmanager

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forkbombeu/avdlaunch/internal/avd"
)

func TestLaunchOptionsDefaults(t *testing.T) {
	mgr := NewWithEnv(Environment{SDKRoot: "/opt/sdk"})
	cfg := mgr.launchConfig(LaunchOptions{Package: "system-images;android-24;google_apis;x86_64"})

	if cfg.SDKDir != "/opt/sdk" {
		t.Fatalf("expected SDK root fallback, got %q", cfg.SDKDir)
	}
	if cfg.Name != "fastlane" || cfg.Device != "Nexus 5" {
		t.Fatalf("unexpected defaults name=%q device=%q", cfg.Name, cfg.Device)
	}
	if !cfg.DemoMode {
		t.Fatal("demo mode should default to true")
	}

	off := false
	cfg = mgr.launchConfig(LaunchOptions{SDKDir: "/other", DemoMode: &off, Name: "shots"})
	if cfg.SDKDir != "/other" || cfg.DemoMode || cfg.Name != "shots" {
		t.Fatalf("options not applied: %+v", cfg)
	}
}

func TestLaunchRejectsMissingPackage(t *testing.T) {
	mgr := NewWithEnv(Environment{SDKRoot: t.TempDir(), AVDHome: t.TempDir()})
	_, err := mgr.Launch(LaunchOptions{})
	if !avd.IsMissingConfig(err) {
		t.Fatalf("expected missing config error, got %v", err)
	}
}

func TestConfigureWritesOverrides(t *testing.T) {
	mgr := NewWithEnv(Environment{AVDHome: t.TempDir()})
	path := mgr.ConfigPath("shots")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("skin.dynamic=no\nhw.lcd.density=420\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := mgr.Configure("shots", map[string]string{"skin.dynamic": "yes"})
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if got != path {
		t.Fatalf("expected %s, got %s", path, got)
	}
	b, _ := os.ReadFile(path)
	if !strings.Contains(string(b), "skin.dynamic=yes\n") || strings.Contains(string(b), "skin.dynamic=no") {
		t.Fatalf("unexpected config.ini %q", b)
	}
}

func TestLaunchResultCarriesLocationAndDemoMode(t *testing.T) {
	got := launchResult(avd.LaunchResult{
		Name:        "shots",
		ConfigPath:  "/avd/shots.avd/config.ini",
		Overrides:   2,
		EmulatorPID: 4242,
		BootPolls:   3,
		Location:    "-122.084 37.422",
		DemoMode:    true,
	})
	if got.Location != "-122.084 37.422" || !got.DemoMode {
		t.Fatalf("location and demo mode not carried: %+v", got)
	}
	if got.Name != "shots" || got.Overrides != 2 || got.EmulatorPID != 4242 || got.BootPolls != 3 {
		t.Fatalf("unexpected result %+v", got)
	}
}
