package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/agrodata/refdata/pkg/types"
)

// envelope is the _meta object spec §6 requires on every successful
// response. DataDate and Version are empty for the EU provider, which
// has no equivalent fields, and omitted from the encoded JSON.
type envelope struct {
	Provider  string  `json:"provider"`
	DataDate  string  `json:"dataDate,omitempty"`
	BuiltAt   string  `json:"builtAt,omitempty"`
	Version   string  `json:"version,omitempty"`
	LastFetch *string `json:"lastFetch,omitempty"`
}

func metaEnvelope(provider string, meta types.DatasetMeta, lastFetch *time.Time) envelope {
	e := envelope{Provider: provider}
	if meta != nil {
		e.DataDate = meta["dateexport"]
		e.BuiltAt = meta["builtAt"]
		e.Version = meta["version"]
	}
	if lastFetch != nil {
		s := lastFetch.Format(time.RFC3339)
		e.LastFetch = &s
	}
	return e
}

// withMeta attaches the envelope to body under "_meta". body is always a
// fresh map built by the calling handler, never a shared one.
func withMeta(body map[string]any, env envelope) map[string]any {
	if body == nil {
		body = map[string]any{}
	}
	body["_meta"] = env
	return body
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
