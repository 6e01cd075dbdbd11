// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package avd

import "runtime"

// Platform identifies the host operating system family.
type Platform int

const (
	PlatformOther Platform = iota
	PlatformLinux
	PlatformMac
	PlatformWindows
)

func (p Platform) String() string {
	switch p {
	case PlatformLinux:
		return "linux"
	case PlatformMac:
		return "mac"
	case PlatformWindows:
		return "windows"
	default:
		return "other"
	}
}

// DetectPlatform maps runtime.GOOS onto a Platform.
func DetectPlatform() Platform {
	return platformFor(runtime.GOOS)
}

func platformFor(goos string) Platform {
	switch goos {
	case "darwin":
		return PlatformMac
	case "linux":
		return PlatformLinux
	case "windows":
		return PlatformWindows
	default:
		return PlatformOther
	}
}
