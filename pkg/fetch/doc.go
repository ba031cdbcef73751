// Package fetch downloads the upstream artifact for one provider and
// writes it to the provider's data directory: the EU feed always as
// data.json, the EPPO XML under the base name of its ZIP entry. A
// Fetcher is the only component that writes raw artifacts. It always
// overwrites, and never touches a Store.
package fetch
