// Package common defines shared constants and sentinel errors used across
// credgate layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// ErrorNoRowsClaimed reports a conditional mutation that matched no row,
	// e.g. claiming an already-consumed or expired token.
	ErrorNoRowsClaimed = errors.New("no rows claimed")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")
)
