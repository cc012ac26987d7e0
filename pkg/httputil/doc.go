// Package httputil provides small HTTP helpers shared by the API handlers.
//
// Responses:
//
//	httputil.WriteJSON(w, http.StatusOK, snapshot)
//	httputil.WriteError(w, r, http.StatusBadGateway, err)
//	httputil.WriteAttachment(w, "analytics-7d-2026-03-15.csv", "text/csv; charset=utf-8", body)
//
// Every error body has the form {"error": "...", "request_id": "..."}.
//
// Middleware:
//
//	handler := httputil.Chain(
//	    httputil.RequestIDMiddleware(logger),
//	    httputil.RecoveryMiddleware(logger),
//	    httputil.LoggingMiddleware(logger),
//	)(router)
package httputil
