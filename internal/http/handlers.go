package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"laporan/internal/calendar"
	"laporan/internal/log"
	"laporan/internal/query"
	"laporan/internal/services"
	"laporan/internal/timeexpr"
)

// readyTimeout bounds all readiness checks together.
const readyTimeout = 5 * time.Second

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady runs every registered check. Any failure makes the service
// not ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any, len(s.checks)+2)

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			checks[name] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "check", name, log.FieldError, err)
			continue
		}
		checks[name] = "ok"
	}

	if s.cacheSize != nil {
		checks["cache"] = map[string]any{"ledger_years": s.cacheSize(), "status": "ok"}
	}
	checks["rate_limiter"] = map[string]any{"active_clients": s.rateLimiter.ActiveClients(), "status": "ok"}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides request and security counters in plain text.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()
	limitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("rate_limit_hits_total", "counter", "Total rate limit hits", limitMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", limitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	if s.cacheSize != nil {
		metric("ledger_cache_years", "gauge", "Ledger years held in the cache", s.cacheSize())
	}
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.started).Seconds()))
}

// handleQuery answers a free-text question: {"text": "..."} as JSON or a
// form field.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, err.Error()).Write(w)
			return
		}
		BadRequestError(err.Error()).Write(w)
		return
	}
	text := p.Get("text")
	if text == "" {
		BadRequestError(services.ErrEmptyQuery.Error()).Write(w)
		return
	}
	s.writeOutcome(w, s.reports.Answer(r.Context(), text))
}

// handleReport runs one menu report. The window comes from ?period=<phrase>
// or ?year=&month=; neither means this month.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	kind := query.ReportType(r.PathValue("type"))
	if !kind.IsValid() {
		NotFoundError(fmt.Sprintf("unknown report type %q", kind)).Write(w)
		return
	}

	window, err := s.window(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	out, err := s.reports.Menu(r.Context(), kind, window)
	if err != nil {
		NotFoundError(err.Error()).Write(w)
		return
	}
	s.writeOutcome(w, out)
}

func (s *Server) window(r *http.Request) (timeexpr.Window, error) {
	q := r.URL.Query()
	if period := sanitizeInput(q.Get("period")); period != "" {
		return s.reports.Window(period)
	}
	params, err := ParseMonthParams(q, s.now())
	if err != nil || !params.Set {
		return timeexpr.Window{}, err
	}
	return timeexpr.MonthOf(params.Month, params.Year), nil
}

// handleProfit is the monthly profit menu, defaulting to this month.
func (s *Server) handleProfit(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	s.writeOutcome(w, s.reports.Profit(r.Context(), params.Year, params.Month))
}

type weeksBody struct {
	Year  int             `json:"year"`
	Month int             `json:"month"`
	Name  string          `json:"name"`
	Weeks []calendar.Week `json:"weeks"`
}

// handleWeeks lists the week windows of a month.
func (s *Server) handleWeeks(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	NewJSONResponse().Body(weeksBody{
		Year:  params.Year,
		Month: int(params.Month),
		Name:  calendar.MonthSheetName(params.Year, params.Month),
		Weeks: s.reports.Weeks(params.Year, params.Month),
	}).Write(w)
}

// writeOutcome maps a report status to an HTTP status. Only a failed data
// fetch is a server-side error; the other statuses are answers.
func (s *Server) writeOutcome(w http.ResponseWriter, out services.Outcome) {
	code := http.StatusOK
	if out.Status == services.StatusError {
		code = http.StatusServiceUnavailable
	}
	NewJSONResponse().Status(code).Body(out).Write(w)
}
