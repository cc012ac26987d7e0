package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/nurturehq/nurture/pkg/analytics"
	"github.com/nurturehq/nurture/pkg/async"
	"github.com/nurturehq/nurture/pkg/httputil"
	"github.com/nurturehq/nurture/pkg/observability"
	"github.com/nurturehq/nurture/pkg/storage"
)

// WindowsResponse lists the supported window selectors
type WindowsResponse struct {
	Windows []analytics.Window `json:"windows"`
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, analytics.ErrInvalidWindow):
		return http.StatusBadRequest
	case errors.Is(err, analytics.ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, analytics.ErrStaleSnapshot):
		return http.StatusConflict
	case errors.Is(err, analytics.ErrFetchFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		observability.FromContext(r.Context()).WithError(err).Error("Analytics request failed")
	}
	httputil.WriteError(w, r, status, err)
}

// parseRequest reads the window and refresh query parameters. The window is
// required; an empty or unknown selector is rejected.
func parseRequest(r *http.Request) (analytics.Window, bool, error) {
	window, err := analytics.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		return "", false, err
	}
	refresh, err := httputil.ParseQueryBool(r, "refresh", false)
	if err != nil {
		return "", false, err
	}
	return window, refresh, nil
}

// listWindows handles GET /api/v1/analytics/windows
func (s *Server) listWindows(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, WindowsResponse{Windows: analytics.Windows()})
}

// getSnapshot handles GET /api/v1/analytics/snapshot
func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	window, refresh, err := parseRequest(r)
	if err != nil {
		httputil.WriteBadRequest(w, r, err.Error())
		return
	}

	snap, err := s.service.Get(r.Context(), window, refresh)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// refreshSnapshot handles POST /api/v1/analytics/refresh
func (s *Server) refreshSnapshot(w http.ResponseWriter, r *http.Request) {
	window, err := analytics.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		httputil.WriteBadRequest(w, r, err.Error())
		return
	}

	snap, err := s.service.Refresh(r.Context(), window)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// getLatest handles GET /api/v1/analytics/latest
func (s *Server) getLatest(w http.ResponseWriter, r *http.Request) {
	snap := s.service.Latest()
	if snap == nil {
		s.writeServiceError(w, r, analytics.ErrSnapshotNotFound)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// exportCSV handles GET /api/v1/analytics/export
func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	window, refresh, err := parseRequest(r)
	if err != nil {
		httputil.WriteBadRequest(w, r, err.Error())
		return
	}

	var buf bytes.Buffer
	snap, err := s.service.Export(r.Context(), window, refresh, &buf)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	filename := analytics.ExportFilename(window, snap.GeneratedAt.In(s.service.Location()))
	body := buf.Bytes()
	if err := httputil.WriteAttachment(w, filename, analytics.ExportContentType, body); err != nil {
		observability.FromContext(r.Context()).WithError(err).Warn("Export write failed")
	}

	if s.archive != nil {
		s.archiveExport(r.Context(), filename, snap, body)
	}
}

// archiveExport uploads body without holding up the response
func (s *Server) archiveExport(ctx context.Context, filename string, snap *analytics.Snapshot, body []byte) <-chan struct{} {
	key := storage.ArchiveKey(s.archivePrefix, filename, snap.GeneratedAt.In(s.service.Location()))
	logger := observability.FromContext(ctx).WithField("key", key)
	return async.SafeGo(async.Detach(ctx), logger, archiveTimeout, "export archive", func(ctx context.Context) error {
		return s.archive.Put(ctx, key, body, analytics.ExportContentType)
	})
}
