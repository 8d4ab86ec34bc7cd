//go:build !windows

package reparse

import "context"

// stubEngager satisfies Engager on platforms with no reparse-point support,
// so internal/driver and the CLI front-ends build everywhere even though
// ENGAGE/DISENGAGE only do real work on Windows.
type stubEngager struct{}

func (stubEngager) Engage(ctx context.Context) (*Handle, error) { return nil, ErrUnsupportedPlatform }

func (stubEngager) Disengage(ctx context.Context, h *Handle) error { return ErrUnsupportedPlatform }

// NewPlatformEngager returns an Engager that always fails with
// ErrUnsupportedPlatform.
func NewPlatformEngager() Engager {
	return stubEngager{}
}
