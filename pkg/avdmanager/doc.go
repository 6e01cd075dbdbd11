// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

/*
Package avdmanager creates and boots an Android Virtual Device (AVD) in a known,
repeatable state for screenshot and UI test pipelines.

# Quick Start

	import "github.com/forkbombeu/avdlaunch/pkg/avdmanager"

	func main() {
		mgr := avdmanager.New()

		res, err := mgr.Launch(avdmanager.LaunchOptions{
			SDKDir:   "/opt/android-sdk",
			Package:  "system-images;android-24;google_apis;x86_64",
			Location: "9.1808 48.7771",
		})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println("booted", res.Name)
	}

# Launch Sequence

Launch always performs the same steps in order:

1. adb emu kill (detached), then a 2 second settle
2. avdmanager create avd -n <name> -f -k <package> -d <device>
3. merge LaunchOptions.AVDConfig into <AVDHome>/<name>.avd/config.ini
4. on macOS, require the Intel HAXM kernel extension (kextstat)
5. emulator @<name> (detached, LC_NUMERIC=C)
6. adb -e wait-for-device
7. adb -e shell getprop dev.bootcomplete every 5 seconds until it prints 1
8. adb emu geo fix <location>, when a location is given
9. demo mode: sysui_demo_allowed=1 and the status bar clock set to 07:00

Step 7 has no upper bound unless LaunchOptions.BootTimeout is set.

# Environment Configuration

By default, the manager auto-detects paths from environment variables:
  - ANDROID_SDK_DIR, ANDROID_SDK_ROOT or ANDROID_HOME
  - ANDROID_AVD_HOME

Use NewWithEnv() to override with custom paths.

# Thread Safety

Only one launch should run per host at a time: every launch kills the
running emulator first.

# License

AGPL-3.0-only

Copyright (C) 2025 Forkbomb B.V.
*/
package avdmanager
