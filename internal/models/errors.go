package models

import "fmt"

// HardReject is returned by the normalizer when the raw input is not a
// syntactically valid email. It is the only error that short-circuits
// scoring entirely (§7).
type HardReject struct {
	Code   string
	Reason string
}

func (e *HardReject) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

// NewInvalidSyntaxReject builds the one HardReject variant spec.md names.
func NewInvalidSyntaxReject(reason string) *HardReject {
	return &HardReject{Code: "INVALID_SYNTAX", Reason: reason}
}

// ProbeFailure wraps any probe-level failure (timeout, transport, parse).
// Callers treat it as "signal is null" and keep going — it is never
// propagated as a hard error out of the engine.
type ProbeFailure struct {
	Probe string
	Err   error
}

func (e *ProbeFailure) Error() string {
	return fmt.Sprintf("probe %s failed: %v", e.Probe, e.Err)
}

func (e *ProbeFailure) Unwrap() error { return e.Err }

// StoreUnavailable describes a failure to reach the backing system (Redis,
// Postgres). The Store backends in internal/store return wrapped driver
// errors rather than this type. The engine degrades on any store error
// rather than failing the call: velocity counters are left unset, caches
// are bypassed, and background enrichment reports DISABLED for that call.
type StoreUnavailable struct {
	Op  string
	Err error
}

func (e *StoreUnavailable) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailable) Unwrap() error { return e.Err }

// ConfigError is raised only at startup, by config.Load: for a missing
// store endpoint or admin key outside dev (in dev those gaps are allowed),
// and for a malformed numeric field in any environment. Scoring weights are
// not validated. The commands in cmd/ exit when Load returns one.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Reason)
}
