package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"laporan/internal/calendar"
	"laporan/internal/log"
	"laporan/internal/query"
	"laporan/internal/report"
	"laporan/internal/timeexpr"
)

// Status classifies an answer.
type Status string

const (
	StatusOK            Status = "ok"
	StatusNoData        Status = "no_data"
	StatusNotUnderstood Status = "not_understood"
	StatusError         Status = "error"
)

var (
	ErrEmptyQuery    = errors.New("query text is empty")
	ErrUnknownReport = errors.New("unknown report type")
	ErrInvalidPeriod = errors.New("period not recognised")
)

// Outcome is the answer to one question or menu selection. Result is set for
// ok and no_data.
type Outcome struct {
	Status Status         `json:"status"`
	Intent *query.Intent  `json:"intent,omitempty"`
	Result *report.Result `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// IntentParser turns free text into an intent.
type IntentParser interface {
	Parse(ctx context.Context, text string) query.Intent
}

// Runner executes an intent.
type Runner interface {
	Run(ctx context.Context, intent query.Intent) (*report.Result, error)
}

// ReportService answers questions for the HTTP API and the queue worker.
type ReportService struct {
	parser IntentParser
	engine Runner
	now    func() time.Time
	logger *log.StructuredLogger
}

func NewReportService(parser IntentParser, engine Runner, now func() time.Time, logger *log.Logger) *ReportService {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ReportService{
		parser: parser,
		engine: engine,
		now:    now,
		logger: log.NewStructuredLogger(logger.WithComponent(log.ComponentEngine)),
	}
}

// Answer parses text and runs the resulting intent. It never returns a nil
// outcome; failures are reported through Status.
func (s *ReportService) Answer(ctx context.Context, text string) Outcome {
	text = strings.TrimSpace(text)
	if text == "" {
		return Outcome{Status: StatusNotUnderstood, Error: ErrEmptyQuery.Error()}
	}
	return s.run(ctx, s.parser.Parse(ctx, text))
}

// Menu runs an explicit report selection over window. A zero window means
// this month.
func (s *ReportService) Menu(ctx context.Context, kind query.ReportType, window timeexpr.Window) (Outcome, error) {
	if !kind.IsValid() {
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownReport, kind)
	}
	return s.run(ctx, query.ForReport(kind, window)), nil
}

// Profit is the monthly profit menu.
func (s *ReportService) Profit(ctx context.Context, year int, month time.Month) Outcome {
	return s.run(ctx, query.ForReport(query.Profit, timeexpr.MonthOf(month, year)))
}

// Window parses a period phrase such as "minggu lalu" or "maret 2026". An
// empty phrase is the zero window.
func (s *ReportService) Window(text string) (timeexpr.Window, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return timeexpr.Window{}, nil
	}
	w, ok := timeexpr.Parse(text, s.now())
	if !ok {
		return timeexpr.Window{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, text)
	}
	return w, nil
}

// Weeks lists the week windows of a month in the business time zone.
func (s *ReportService) Weeks(year int, month time.Month) []calendar.Week {
	return calendar.WeeksInMonth(year, month, s.now().Location())
}

func (s *ReportService) run(ctx context.Context, intent query.Intent) Outcome {
	out := Outcome{Intent: &intent}
	timeframe := intent.Window().Label()

	res, err := s.engine.Run(ctx, intent)
	switch {
	case errors.Is(err, report.ErrNotUnderstood):
		out.Status = StatusNotUnderstood
	case err != nil:
		out.Status = StatusError
		out.Error = errorMessage(err)
		s.logger.LogError(ctx, "Report failed", err, log.ComponentEngine, log.OpReport,
			log.NewFields().WithReport(string(intent.Type()), timeframe, string(out.Status)))
	default:
		out.Result = res
		timeframe = res.Period.Label
		out.Status = StatusOK
		if res.Empty {
			out.Status = StatusNoData
		}
	}

	s.logger.LogReport(ctx, string(intent.Type()), timeframe, string(out.Status))
	return out
}

func errorMessage(err error) string {
	var se *report.StoreError
	if errors.As(err, &se) {
		return fmt.Sprintf("transactions for %d are unavailable", se.Year)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "request cancelled"
	}
	return err.Error()
}
