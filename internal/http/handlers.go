package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.renderer == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.deps.Ready != nil {
		if err := s.deps.Ready(ctx); err != nil {
			checks["dependencies"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["dependencies"] = "ok"
		}
	}

	signedIn := s.deps.Watcher != nil && s.deps.Watcher.Current() != nil
	checks["principal"] = map[string]interface{}{"signed_in": signedIn}

	if s.deps.Caches != nil {
		checks["cache"] = map[string]interface{}{
			"entries": s.deps.Caches.Stats().Size,
			"status":  "ok",
		}
	}

	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.limiter.GetMetrics().ClientCount,
		"status":         "ok",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()
	rateLimitMetrics := s.limiter.GetMetrics()

	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
		fmt.Fprintf(w, "%s %d\n\n", name, v)
	}
	gauge := func(name, help string, v float64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", name)
		fmt.Fprintf(w, "%s %g\n\n", name, v)
	}

	w.WriteHeader(http.StatusOK)

	counter("http_requests_total", "Total number of HTTP requests", traceMetrics.TotalRequests)
	counter("http_client_errors_total", "Responses with a 4xx status", traceMetrics.ClientErrors)
	counter("http_server_errors_total", "Responses with a 5xx status", traceMetrics.ServerErrors)
	gauge("http_response_time_avg_ms", "Average response time in milliseconds",
		float64(traceMetrics.AverageResponseTime.Microseconds())/1000)

	counter("transactions_created_total", "Transactions accepted by the store", s.appMetrics.created.Load())
	counter("transactions_create_failed_total", "Transaction submissions that failed", s.appMetrics.createFailed.Load())
	counter("transactions_refresh_failed_total", "Transaction list fetches that failed", s.appMetrics.refreshFailed.Load())
	counter("categorizations_total", "Category suggestions served", s.appMetrics.categorized.Load())
	counter("advice_answers_total", "Advice questions answered", s.appMetrics.adviceAnswered.Load())

	if s.deps.Caches != nil {
		st := s.deps.Caches.Stats()
		gauge("cache_entries", "Entries held by in-process caches", float64(st.Size))
		counter("cache_hits_total", "Total cache hits", int64(st.Hits))
		counter("cache_misses_total", "Total cache misses", int64(st.Misses))
		counter("cache_evictions_total", "Entries evicted for capacity", int64(st.Evictions))
	}

	counter("rate_limit_rejected_total", "Requests rejected by the rate limiter", rateLimitMetrics.Rejected)
	gauge("rate_limit_active_clients", "Clients tracked by the rate limiter", float64(rateLimitMetrics.ClientCount))
	counter("security_blocked_total", "Suspicious requests blocked", s.detector.Blocked())

	gauge("uptime_seconds", "Time since the server started", time.Since(s.appMetrics.uptime).Seconds())
}

type errorData struct {
	Back string
}

// handleNotFound renders the error page for any path no route claims.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "error", page{
		Title: "Not found",
		Error: "Page not found",
		Data:  errorData{Back: "/"},
	})
}
