/*
Package types holds the domain model and sentinel errors shared across
refdata's components: the provider state record, the EPPO and EU entity
shapes, and the error kinds from which the HTTP layer derives status
codes.

# Provider state

ProviderState is process-local: Ready flips true the first time a Store
opens successfully and never flips back; Fetching and Building track an
in-flight background operation and are mutually exclusive with
themselves, though not with each other (a Fetch transitions directly
into a Build).

# Sentinel errors

	ErrNotReady          query arrived before any Store was published
	ErrAlreadyInProgress Fetch/Build requested while one is running locally
	ErrLockedByPeer      the cross-node lock is held by another process
	ErrNotFound          point lookup missed
	ErrBadRequest        a required parameter was missing or malformed

Callers compare with errors.Is; the HTTP layer (pkg/httpapi) is the only
place that turns these into status codes.
*/
package types
