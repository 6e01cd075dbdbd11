// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package avd

import (
	"path/filepath"
	"testing"
)

func TestDetect(t *testing.T) {
	env := Detect()
	if env.AVDHome == "" {
		t.Fatal("AVDHome should not be empty")
	}
}

func TestDetectSDKFallbacks(t *testing.T) {
	t.Setenv("ANDROID_SDK_DIR", "")
	t.Setenv("ANDROID_SDK_ROOT", "")
	t.Setenv("ANDROID_HOME", "/opt/android-home")
	if got := Detect().SDKRoot; got != "/opt/android-home" {
		t.Fatalf("expected ANDROID_HOME fallback, got %q", got)
	}

	t.Setenv("ANDROID_SDK_DIR", "/opt/sdk-dir")
	if got := Detect().SDKRoot; got != "/opt/sdk-dir" {
		t.Fatalf("expected ANDROID_SDK_DIR to win, got %q", got)
	}
}

func TestDetectAVDHomeOverride(t *testing.T) {
	t.Setenv("ANDROID_AVD_HOME", "/tmp/avds")
	env := Detect()
	if got := env.ConfigPath("fastlane"); got != filepath.Join("/tmp/avds", "fastlane.avd", "config.ini") {
		t.Fatalf("unexpected config path %s", got)
	}
}

func TestPlatformFor(t *testing.T) {
	cases := map[string]Platform{
		"darwin":  PlatformMac,
		"linux":   PlatformLinux,
		"windows": PlatformWindows,
		"plan9":   PlatformOther,
	}
	for goos, want := range cases {
		if got := platformFor(goos); got != want {
			t.Fatalf("%s: expected %s, got %s", goos, want, got)
		}
	}
}
