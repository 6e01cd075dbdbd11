// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	core "github.com/forkbombeu/avdlaunch/internal/avd"
	"github.com/forkbombeu/avdlaunch/internal/telemetry"
)

func main() {
	env := core.Detect()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	shutdown, err := telemetry.Setup(ctx, "avdlaunch")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	root := newRootCommand(env)
	err = root.ExecuteContext(ctx)

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = shutdown(flushCtx)
	cancel()
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand(env core.Env) *cobra.Command {
	root := &cobra.Command{
		Use:           "avdlaunch",
		Short:         "Create and boot an Android emulator for screenshot and UI test pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newLaunchCommand(env))
	root.AddCommand(newConfigureCommand(env))
	return root
}

// launch
func newLaunchCommand(env core.Env) *cobra.Command {
	cfg := core.DefaultLaunchConfig()
	cfg.SDKDir = env.SDKRoot
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Recreate an AVD, boot it and wait until dev.bootcomplete is 1",
		Example: `  avdlaunch launch \
    --sdk-dir "$HOME/Library/Android/sdk" \
    --package "system-images;android-24;google_apis;x86_64" \
    --device "Nexus 5" \
    --location "9.1808 48.7771" \
    --demo-mode \
    --avd-config hw.gpu.mode=auto,hw.gpu.enabled=yes \
    --avd-config skin.dynamic=yes,skin.name=nexus_9`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return applyEnvFallbacks(cmd.Flags(), launchEnv)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			env.Context = cmd.Context()
			if asJSON {
				core.SetLogOutput(os.Stderr)
			}
			res, err := core.Launch(env, cfg)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Printf("Emulator %s booted after %d polls (config: %s)\n", res.Name, res.BootPolls, res.ConfigPath)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.SDKDir, "sdk-dir", cfg.SDKDir, "Path to the Android SDK dir (env ANDROID_SDK_DIR)")
	f.StringVar(&cfg.Package, "package", "", "System image of the emulator, e.g. system-images;android-24;google_apis;x86_64")
	f.StringVar(&cfg.Name, "name", cfg.Name, "Name of the AVD")
	f.StringVar(&cfg.Device, "device", cfg.Device, "Device profile")
	f.StringVar(&cfg.Location, "location", "", "Location of the emulator '<longitude> <latitude>'")
	f.BoolVar(&cfg.DemoMode, "demo-mode", cfg.DemoMode, "Put the emulator in System UI demo mode")
	f.StringToStringVar(&cfg.AVDConfig, "avd-config", nil, "config.ini overrides as key=value (repeatable)")
	f.DurationVar(&cfg.BootTimeout, "boot-timeout", 0, "give up waiting for boot after this long (0 waits forever)")
	f.BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

// configure
func newConfigureCommand(env core.Env) *cobra.Command {
	var name string
	var entries map[string]string

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Merge key=value overrides into an existing AVD's config.ini",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return applyEnvFallbacks(cmd.Flags(), configureEnv)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			env.Context = cmd.Context()
			path, err := core.NewLauncher(env).Configure(name, entries)
			if err != nil {
				return err
			}
			fmt.Printf("Updated %s (%d entries)\n", path, len(entries))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", core.DefaultName, "Name of the AVD")
	cmd.Flags().StringToStringVar(&entries, "set", nil, "config.ini entry as key=value (repeatable)")
	return cmd
}
