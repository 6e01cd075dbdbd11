// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package avd

import (
	"context"
	"os"
	"os/user"
	"path/filepath"
)

type Env struct {
	SDKRoot string // ANDROID_SDK_DIR, ANDROID_SDK_ROOT or ANDROID_HOME
	AVDHome string // ANDROID_AVD_HOME (default ~/.android/avd)
	// CorrelationID is used to tie logs to a specific pipeline run.
	CorrelationID string
	// Context is used to parent OpenTelemetry spans and to cancel sleeps.
	Context context.Context
}

func Detect() Env {
	usr, _ := user.Current()
	home := ""
	if usr != nil {
		home = usr.HomeDir
	} else if h := os.Getenv("HOME"); h != "" {
		home = h
	}

	sdk := getenv("ANDROID_SDK_DIR", "")
	if sdk == "" {
		sdk = getenv("ANDROID_SDK_ROOT", os.Getenv("ANDROID_HOME"))
	}
	avd := getenv("ANDROID_AVD_HOME", filepath.Join(home, ".android", "avd"))

	return Env{
		SDKRoot:       sdk,
		AVDHome:       avd,
		CorrelationID: getenv("AVDLAUNCH_CORRELATION_ID", ""),
		Context:       context.Background(),
	}
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// Tools holds the SDK binaries the launcher drives.
type Tools struct {
	ADB        string
	AvdManager string
	Emulator   string
}

// ToolsFor resolves tool paths relative to an SDK installation root.
func ToolsFor(sdkDir string) Tools {
	return Tools{
		ADB:        filepath.Join(sdkDir, "platform-tools", "adb"),
		AvdManager: filepath.Join(sdkDir, "tools", "bin", "avdmanager"),
		Emulator:   filepath.Join(sdkDir, "emulator", "emulator"),
	}
}

// ConfigPath is where avdmanager writes the config.ini of the named AVD.
func (env Env) ConfigPath(name string) string {
	return filepath.Join(env.AVDHome, name+".avd", "config.ini")
}
