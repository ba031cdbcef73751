package httpapi

import (
	"errors"
	"net/http"

	"github.com/agrodata/refdata/pkg/types"
)

// writeError maps a query-path error to the status code spec §7 assigns
// to its kind. NotReady additionally carries the provider's current
// fetching/rebuilding flags so a caller knows whether to poll or retry.
func writeError(w http.ResponseWriter, err error, state types.ProviderState) {
	switch {
	case errors.Is(err, types.ErrNotReady):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ok":         false,
			"error":      "not ready",
			"fetching":   state.Fetching,
			"rebuilding": state.Building,
		})
	case errors.Is(err, types.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
	case errors.Is(err, types.ErrBadRequest):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}

// writeOpResult renders the outcome of POST /fetch or POST /rebuild.
// AlreadyInProgress and LockedByPeer are not HTTP errors per spec §7:
// they are a negative-ok 200, so a caller's retry loop never has to tell
// a transport failure apart from "try again later".
func writeOpResult(w http.ResponseWriter, err error, busyMessage string) {
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	switch {
	case errors.Is(err, types.ErrAlreadyInProgress):
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": busyMessage})
	case errors.Is(err, types.ErrLockedByPeer):
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": "locked by another node"})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
	}
}
