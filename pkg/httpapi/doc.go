/*
Package httpapi is the query surface: one chi sub-router per provider
prefix (/eppo, /eu) plus the shared /metrics endpoint.

Handlers never touch sql.DB directly. They call through a
*provider.EPPOCoordinator or *provider.EUCoordinator, which owns the
live Store and answers ErrNotReady until one has been published. The
status-code mapping for every error kind lives in one place (writeError,
writeOpResult) so a handler never branches on an error string.
*/
package httpapi
