package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/agrodata/refdata/pkg/metrics"
	"github.com/agrodata/refdata/pkg/provider"
	"github.com/agrodata/refdata/pkg/types"
)

type eppoHandlers struct {
	c *provider.EPPOCoordinator
}

func (h *eppoHandlers) mount(r chi.Router) {
	r.Get("/health", h.health)
	r.Get("/meta", h.meta)
	r.Get("/stats", h.stats)
	r.Get("/code/{eppocode}", h.getCode)
	r.Get("/name/{eppocode}", h.getName)
	r.Get("/search", h.search)
	r.Post("/fetch", h.fetch)
	r.Post("/rebuild", h.rebuild)
}

func (h *eppoHandlers) health(w http.ResponseWriter, r *http.Request) {
	st := h.c.State()
	body := map[string]any{
		"ok":         st.Ready,
		"provider":   "eppo",
		"rebuilding": st.Building,
		"fetching":   st.Fetching,
	}
	if st.Ready {
		codes, names, namesActive, err := h.c.Stats()
		if err == nil {
			body["stats"] = map[string]any{"codes": codes, "names": names, "namesActive": namesActive}
		}
	} else {
		body["error"] = "no database has been published yet"
	}
	writeJSON(w, http.StatusOK, withMeta(body, metaEnvelope("eppo", st.Meta, st.LastFetch)))
}

func (h *eppoHandlers) meta(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"meta": h.c.State().Meta})
}

func (h *eppoHandlers) stats(w http.ResponseWriter, r *http.Request) {
	st := h.c.State()
	codes, names, namesActive, err := h.c.Stats()
	if err != nil {
		writeError(w, err, st)
		return
	}
	writeJSON(w, http.StatusOK, withMeta(map[string]any{
		"codes": codes, "names": names, "namesActive": namesActive,
	}, metaEnvelope("eppo", st.Meta, st.LastFetch)))
}

func (h *eppoHandlers) getCode(w http.ResponseWriter, r *http.Request) {
	st := h.c.State()
	eppocode := chi.URLParam(r, "eppocode")
	lang := r.URL.Query().Get("lang")
	code, err := h.c.GetCode(eppocode, lang)
	if err != nil {
		writeError(w, err, st)
		return
	}
	writeJSON(w, http.StatusOK, withMeta(map[string]any{
		"code": code, "names": code.Names,
	}, metaEnvelope("eppo", st.Meta, st.LastFetch)))
}

func (h *eppoHandlers) getName(w http.ResponseWriter, r *http.Request) {
	st := h.c.State()
	eppocode := chi.URLParam(r, "eppocode")
	lang := r.URL.Query().Get("lang")
	country := r.URL.Query().Get("country")
	n, err := h.c.GetName(eppocode, lang, country)
	if err != nil {
		writeError(w, err, st)
		return
	}
	writeJSON(w, http.StatusOK, withMeta(map[string]any{"name": n}, metaEnvelope("eppo", st.Meta, st.LastFetch)))
}

func (h *eppoHandlers) search(w http.ResponseWriter, r *http.Request) {
	st := h.c.State()
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, types.ErrBadRequest, st)
		return
	}
	lang := r.URL.Query().Get("lang")
	country := r.URL.Query().Get("country")
	limit := parseIntDefault(r.URL.Query().Get("limit"), 0)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

	timer := metrics.NewTimer()
	res, err := h.c.Search(q, lang, country, limit, offset)
	timer.ObserveDurationVec(metrics.SearchDuration, "eppo")
	if err != nil {
		writeError(w, err, st)
		return
	}
	writeJSON(w, http.StatusOK, withMeta(map[string]any{
		"hits": res.Hits, "total": res.Total, "limit": res.Limit, "offset": res.Offset,
	}, metaEnvelope("eppo", st.Meta, st.LastFetch)))
}

func (h *eppoHandlers) fetch(w http.ResponseWriter, r *http.Request) {
	err := h.c.Fetch(r.Context())
	writeOpResult(w, err, "already fetching")
}

type eppoRebuildRequest struct {
	Types string `json:"types"`
}

func (h *eppoHandlers) rebuild(w http.ResponseWriter, r *http.Request) {
	var allowTypes []string
	if r.Body != nil {
		var body eppoRebuildRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed request body"})
			return
		}
		if body.Types != "" {
			for _, t := range strings.Split(body.Types, ",") {
				allowTypes = append(allowTypes, strings.TrimSpace(t))
			}
		}
	}
	err := h.c.Rebuild(r.Context(), allowTypes)
	writeOpResult(w, err, "already rebuilding")
}
