// Package store opens a built database file read-only and exposes the
// point-lookup and prefix-search operations the HTTP layer calls. A Store
// is immutable for its whole lifetime: it is constructed once a Builder
// has produced a complete file, handed to callers via the Coordinator's
// atomic swap, and closed only after it has been replaced.
//
// EPPOStore and EUStore are separate concrete types, not implementations
// of one shared interface. Their query shapes (code/name lookup vs.
// substance/CAS lookup) differ enough that a unifying interface would
// buy nothing beyond the Close/Meta pair both already share.
package store
