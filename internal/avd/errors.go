// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package avd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/containerd/errdefs"
)

// ErrBootTimeout is returned when a configured boot timeout elapses before
// dev.bootcomplete reports 1.
var ErrBootTimeout = fmt.Errorf("emulator boot timeout: %w", context.DeadlineExceeded)

// ToolError reports a synchronous external command that exited with an error.
type ToolError struct {
	Command string
	Output  string
	Err     error
}

func (e *ToolError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s failed: %v\n%s", e.Command, e.Err, out)
}

func (e *ToolError) Unwrap() []error {
	return []error{errdefs.ErrUnavailable, e.Err}
}

func missingConfig(field string) error {
	return fmt.Errorf("no %s given: %w", field, errdefs.ErrInvalidArgument)
}

// IsMissingConfig reports whether err was caused by an incomplete LaunchConfig.
func IsMissingConfig(err error) bool { return errdefs.IsInvalidArgument(err) }

// IsToolFailure reports whether err came from a failing external tool.
func IsToolFailure(err error) bool {
	var te *ToolError
	return errors.As(err, &te)
}

// IsMissingHostCapability reports whether the host lacks hardware acceleration.
func IsMissingHostCapability(err error) bool { return errdefs.IsFailedPrecondition(err) }

// IsBootTimeout reports whether the boot poll gave up.
func IsBootTimeout(err error) bool { return errors.Is(err, ErrBootTimeout) }
