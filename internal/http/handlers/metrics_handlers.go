package handlers

import (
	"net/http"
	"strconv"
)

// GetDashboardHandler godoc
// @Summary Catalog and today's sales at a glance
// @Tags metrics
// @Produce json
// @Success 200 {object} catalog.Dashboard
// @Failure 502 {object} ErrorResponse
// @Router /dashboard [get]
func (s *Server) GetDashboardHandler(w http.ResponseWriter, r *http.Request) {
	d, err := s.catalog.Dashboard(r.Context(), s.now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, d)
}

// GetStatusHandler godoc
// @Summary Storage mode and sync state of every collection
// @Tags metrics
// @Produce json
// @Success 200 {object} catalog.Status
// @Router /status [get]
func (s *Server) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	st, err := s.catalog.Status(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, st)
}

// SyncHandler godoc
// @Summary Refresh every collection from the remote store
// @Tags metrics
// @Produce json
// @Success 200 {object} SyncResult
// @Failure 502 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse "Not configured"
// @Router /sync [post]
func (s *Server) SyncHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Refresh(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, SyncResult{SyncedAt: s.now().UTC()})
}

// GetNotificationsHandler godoc
// @Summary Recent notifications
// @Tags metrics
// @Produce json
// @Param since query int false "Only notifications with a greater id"
// @Success 200 {object} NotificationsResult
// @Failure 400 {object} ErrorResponse
// @Router /notifications [get]
func (s *Server) GetNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.badRequest(w, "invalid since")
			return
		}
		since = v
	}
	s.respond(w, http.StatusOK, NotificationsResult{Data: s.catalog.Feed().Recent(since)})
}
