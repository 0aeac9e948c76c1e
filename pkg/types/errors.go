package types

import "errors"

// Sentinel error kinds surfaced by the core. Per-DTR and per-submodel
// failures are reported inside a structured result (PerDtrResult,
// SubmodelDescriptorResult). The errors that abort a call outright are
// ErrLimitMismatch from DiscoverShells, ErrNotFound from DiscoverShell
// (and so from DiscoverSubmodels), failures to resolve a BPN's DTRs, and
// programmer errors.
var (
	ErrNotFound          = errors.New("not found")
	ErrNoPolicies        = errors.New("dtr has no policies")
	ErrNegotiationFailed = errors.New("negotiation failed")
	ErrUpstreamHTTP      = errors.New("upstream http error")
	ErrLimitMismatch     = errors.New("cursor limit does not match requested limit")
	ErrMalformed         = errors.New("malformed cursor")
	ErrPersistenceFailed = errors.New("persistence failed")
)
