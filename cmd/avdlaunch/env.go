// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// launchEnv maps flags to the environment variables that fill them when the
// flag is not given on the command line.
var launchEnv = map[string]string{
	"package":      "AVD_PACKAGE",
	"name":         "AVD_NAME",
	"device":       "AVD_DEVICE",
	"location":     "AVD_LOCATION",
	"demo-mode":    "AVD_DEMO_MODE",
	"avd-config":   "AVD_CONFIGURATION",
	"boot-timeout": "AVD_BOOT_TIMEOUT",
}

var configureEnv = map[string]string{
	"name": "AVD_NAME",
	"set":  "AVD_CONFIGURATION",
}

// applyEnvFallbacks parses env values through the flags themselves so that
// booleans, durations and key=value lists follow the flag syntax.
func applyEnvFallbacks(flags *pflag.FlagSet, vars map[string]string) error {
	for name, key := range vars {
		if flags.Changed(name) {
			continue
		}
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		if err := flags.Set(name, v); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	return nil
}
