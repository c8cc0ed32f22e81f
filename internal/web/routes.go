package web

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"refdash/internal/apperr"
	"refdash/internal/directory"
	"refdash/internal/export"
	"refdash/internal/jobs"
)

// HTTP exposes one Browser.
type HTTP struct {
	browser  *directory.Browser
	users    jobs.UserLister
	recorder jobs.Recorder
	pageSize int
	logger   *zap.Logger
}

// NewRouter builds the chi router. users and recorder back the full export;
// recorder may be nil.
func NewRouter(b *directory.Browser, users jobs.UserLister, recorder jobs.Recorder, pageSize int, logger *zap.Logger) chi.Router {
	h := &HTTP{browser: b, users: users, recorder: recorder, pageSize: pageSize, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/state", HandleError(h.state))
	r.Post("/page/{page}", HandleError(h.changePage))
	r.Put("/search", HandleError(h.setQuery))
	r.Delete("/search", HandleError(h.clearSearch))
	r.Post("/users/{id}/toggle", HandleError(h.toggle))
	r.Post("/users/{id}/referrals/{page}", HandleError(h.changeReferralPage))
	r.Post("/users/{id}/retry", HandleError(h.retryReferrals))
	r.Post("/refresh", HandleError(h.refresh))
	r.Put("/filter/{status}", HandleError(h.setFilter))
	r.Get("/export.csv", HandleError(h.exportPage))
	r.Get("/export/all.csv", HandleError(h.exportAll))
	return r
}

func (h *HTTP) state(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, h.browser.View())
	return nil
}

func pageParam(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0, apperr.ValidationError(err, "invalid page")
	}
	return n, nil
}

func (h *HTTP) changePage(w http.ResponseWriter, r *http.Request) error {
	page, err := pageParam(r, "page")
	if err != nil {
		return err
	}
	if err := h.browser.ChangePage(r.Context(), page); err != nil {
		return err
	}
	return h.state(w, r)
}

func (h *HTTP) setQuery(w http.ResponseWriter, r *http.Request) error {
	h.browser.SetQuery(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusAccepted, h.browser.View())
	return nil
}

func (h *HTTP) clearSearch(w http.ResponseWriter, r *http.Request) error {
	h.browser.ClearSearch()
	return h.state(w, r)
}

func (h *HTTP) toggle(w http.ResponseWriter, r *http.Request) error {
	if err := h.browser.ToggleExpand(r.Context(), chi.URLParam(r, "id")); err != nil {
		return err
	}
	return h.state(w, r)
}

func (h *HTTP) changeReferralPage(w http.ResponseWriter, r *http.Request) error {
	page, err := pageParam(r, "page")
	if err != nil {
		return err
	}
	if err := h.browser.ChangeReferralPage(r.Context(), chi.URLParam(r, "id"), page); err != nil {
		return err
	}
	return h.state(w, r)
}

func (h *HTTP) retryReferrals(w http.ResponseWriter, r *http.Request) error {
	if err := h.browser.RetryReferrals(r.Context(), chi.URLParam(r, "id")); err != nil {
		return err
	}
	return h.state(w, r)
}

func (h *HTTP) refresh(w http.ResponseWriter, r *http.Request) error {
	if err := h.browser.Refresh(r.Context()); err != nil {
		return err
	}
	return h.state(w, r)
}

func (h *HTTP) setFilter(w http.ResponseWriter, r *http.Request) error {
	if err := h.browser.SetStatusFilter(chi.URLParam(r, "status")); err != nil {
		return err
	}
	return h.state(w, r)
}

func (h *HTTP) exportPage(w http.ResponseWriter, r *http.Request) error {
	var buf bytes.Buffer
	if err := export.WriteUsers(&buf, h.browser.View().Users()); err != nil {
		return err
	}
	writeCSV(w, "users_export.csv", buf.Bytes())
	return nil
}

func (h *HTTP) exportAll(w http.ResponseWriter, r *http.Request) error {
	var buf bytes.Buffer
	if _, err := jobs.ExportAllUsers(r.Context(), h.recorder, h.users, &buf, h.pageSize, h.logger); err != nil {
		return err
	}
	writeCSV(w, "all_users_export.csv", buf.Bytes())
	return nil
}

func writeCSV(w http.ResponseWriter, name string, body []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
