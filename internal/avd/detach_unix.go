// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

//go:build unix

package avd

import "syscall"

// detachedProcAttr puts the child in its own process group so it outlives us.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
