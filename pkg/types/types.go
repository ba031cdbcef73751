package types

import (
	"errors"
	"time"
)

// Sentinel errors. Compare with errors.Is; never branch on error strings.
var (
	ErrNotReady          = errors.New("not ready")
	ErrAlreadyInProgress = errors.New("already in progress")
	ErrLockedByPeer      = errors.New("locked by another node")
	ErrNotFound          = errors.New("not found")
	ErrBadRequest        = errors.New("bad request")
)

// ProviderState is the process-local view of a provider's lifecycle.
// It is owned exclusively by that provider's Coordinator.
type ProviderState struct {
	Ready     bool
	Fetching  bool
	Building  bool
	StorePath string
	RawPath   string
	Meta      map[string]string
	LastFetch *time.Time
}

// Code is an EPPO taxon code with its active names.
type Code struct {
	ID           int64
	EppoCode     string
	Type         string
	Creation     *time.Time
	Modification *time.Time
	Preferred    *Name
	Names        []Name
}

// Name is a localized name for an EPPO code.
type Name struct {
	ID          int64
	CodeID      int64
	EppoCode    string
	FullName    string
	Lang        string
	LangCountry *string
	Authority   *string
	IsPreferred bool
	IsActive    bool
	Creation    *time.Time
	Modification *time.Time
}

// SearchHit is one row of an EPPO prefix-search result.
type SearchHit struct {
	EppoCode  string
	FullName  string
	Lang      string
	Type      string
	Preferred *Name
	Score     float64
}

// SearchResult is a page of EPPO search hits plus the total distinct count.
type SearchResult struct {
	Hits   []SearchHit
	Total  int
	Limit  int
	Offset int
}

// Substance is a EU active-substance record. Most descriptive fields are
// opaque pass-through text carried verbatim from the upstream JSON.
type Substance struct {
	SubstanceID          int64
	SubstanceName        string
	ASCasNumber          *string
	ASCasNumberRescued   *string
	SubstanceStatus      string
	SubstanceCategory    string
	ApprovalDate         *string
	ExpiryDate           *string
	ToxValueARfD         *string
	ToxSourceARfD        *string
	Remark               *string
	Extra                map[string]any
}

// SubstanceHit is one row of a EU search result.
type SubstanceHit struct {
	Substance Substance
	Score     float64
}

// SubstanceSearchResult is a page of EU search hits plus the total count.
type SubstanceSearchResult struct {
	Hits   []SubstanceHit
	Total  int
	Limit  int
	Offset int
}

// DatasetMeta is the key/value metadata table written by the Builder and
// read back by the Coordinator and the HTTP layer's _meta envelope.
type DatasetMeta map[string]string

// NameFallback describes the precedence used by Store.GetName: first
// match wins, tie-broken within a tier by IsPreferred.
type NameFallback int

const (
	// FallbackExact requires lang AND the given country.
	FallbackExact NameFallback = iota
	// FallbackGeneric requires lang with no country (langcountry IS NULL).
	FallbackGeneric
	// FallbackAny accepts any row with the given lang.
	FallbackAny
)
