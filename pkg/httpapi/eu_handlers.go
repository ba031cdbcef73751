package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/agrodata/refdata/pkg/metrics"
	"github.com/agrodata/refdata/pkg/provider"
	"github.com/agrodata/refdata/pkg/types"
)

type euHandlers struct {
	c *provider.EUCoordinator
}

func (h *euHandlers) mount(r chi.Router) {
	r.Get("/health", h.health)
	r.Get("/meta", h.meta)
	r.Get("/stats", h.stats)
	r.Get("/substance/{id}", h.getSubstance)
	r.Get("/cas/{cas}", h.getByCas)
	r.Get("/search", h.search)
	r.Post("/fetch", h.fetch)
	r.Post("/rebuild", h.rebuild)
}

func (h *euHandlers) health(w http.ResponseWriter, r *http.Request) {
	st := h.c.State()
	body := map[string]any{
		"ok":         st.Ready,
		"provider":   "eu",
		"rebuilding": st.Building,
		"fetching":   st.Fetching,
	}
	if st.Ready {
		total, err := h.c.Stats()
		if err == nil {
			body["stats"] = map[string]any{"substances": total}
		}
	} else {
		body["error"] = "no database has been published yet"
	}
	writeJSON(w, http.StatusOK, withMeta(body, metaEnvelope("eu", st.Meta, st.LastFetch)))
}

func (h *euHandlers) meta(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"meta": h.c.State().Meta})
}

func (h *euHandlers) stats(w http.ResponseWriter, r *http.Request) {
	st := h.c.State()
	total, err := h.c.Stats()
	if err != nil {
		writeError(w, err, st)
		return
	}
	writeJSON(w, http.StatusOK, withMeta(map[string]any{"substances": total}, metaEnvelope("eu", st.Meta, st.LastFetch)))
}

func (h *euHandlers) getSubstance(w http.ResponseWriter, r *http.Request) {
	st := h.c.State()
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, types.ErrBadRequest, st)
		return
	}
	sub, err := h.c.GetSubstance(id)
	if err != nil {
		writeError(w, err, st)
		return
	}
	writeJSON(w, http.StatusOK, withMeta(map[string]any{"substance": sub}, metaEnvelope("eu", st.Meta, st.LastFetch)))
}

func (h *euHandlers) getByCas(w http.ResponseWriter, r *http.Request) {
	st := h.c.State()
	cas := chi.URLParam(r, "cas")
	sub, err := h.c.GetByCas(cas)
	if err != nil {
		writeError(w, err, st)
		return
	}
	writeJSON(w, http.StatusOK, withMeta(map[string]any{"substance": sub}, metaEnvelope("eu", st.Meta, st.LastFetch)))
}

func (h *euHandlers) search(w http.ResponseWriter, r *http.Request) {
	st := h.c.State()
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, types.ErrBadRequest, st)
		return
	}
	status := r.URL.Query().Get("status")
	category := r.URL.Query().Get("category")
	includeOther := parseIncludeOther(r.URL.Query().Get("includeOther"))
	limit := parseIntDefault(r.URL.Query().Get("limit"), 0)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

	timer := metrics.NewTimer()
	res, err := h.c.SearchSubstances(q, status, category, includeOther, limit, offset)
	timer.ObserveDurationVec(metrics.SearchDuration, "eu")
	if err != nil {
		writeError(w, err, st)
		return
	}
	writeJSON(w, http.StatusOK, withMeta(map[string]any{
		"hits": res.Hits, "total": res.Total, "limit": res.Limit, "offset": res.Offset,
	}, metaEnvelope("eu", st.Meta, st.LastFetch)))
}

func (h *euHandlers) fetch(w http.ResponseWriter, r *http.Request) {
	err := h.c.Fetch(r.Context())
	writeOpResult(w, err, "already fetching")
}

func (h *euHandlers) rebuild(w http.ResponseWriter, r *http.Request) {
	err := h.c.Rebuild(r.Context())
	writeOpResult(w, err, "already rebuilding")
}
