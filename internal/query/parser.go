package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"laporan/internal/cache"
	"laporan/internal/entity"
)

// DefaultAITimeout bounds a single AI call.
const DefaultAITimeout = 10 * time.Second

// ErrNoAI is returned by the parser chain when no AI parser is configured.
var ErrNoAI = errors.New("ai parser not configured")

// AIParser asks a language model to classify text. Implementations return a
// Spec with the fields they could extract; the chain normalises it.
type AIParser interface {
	ParseIntent(ctx context.Context, text string, capsters, branches []string) (*Spec, error)
}

// Parser is the two-stage chain: AI first, keyword rules on any AI failure.
type Parser struct {
	ai       AIParser
	timeout  time.Duration
	fallback *KeywordBuilder
	resolver *entity.Resolver
	memo     *cache.LRUCache[Intent]
	logger   *slog.Logger
}

type ParserOption func(*Parser)

// WithAI enables the AI stage. A non-positive timeout uses DefaultAITimeout.
func WithAI(ai AIParser, timeout time.Duration) ParserOption {
	return func(p *Parser) {
		p.ai = ai
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithMemo caches AI answers per question and day.
func WithMemo(memo *cache.LRUCache[Intent]) ParserOption {
	return func(p *Parser) { p.memo = memo }
}

func WithParserLogger(l *slog.Logger) ParserOption {
	return func(p *Parser) { p.logger = l }
}

// NewParser builds the chain around resolver. Without WithAI only keyword
// rules run.
func NewParser(resolver *entity.Resolver, now func() time.Time, opts ...ParserOption) *Parser {
	p := &Parser{
		timeout:  DefaultAITimeout,
		fallback: NewKeywordBuilder(resolver, now),
		resolver: resolver,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse always yields an intent. Callers must check Valid before running it.
func (p *Parser) Parse(ctx context.Context, text string) Intent {
	intent, err := p.parseAI(ctx, text)
	if err == nil {
		return intent
	}
	if !errors.Is(err, ErrNoAI) {
		p.logger.Warn("AI parse failed, using keyword rules",
			"component", "query_parser",
			"error", err)
	}
	return p.fallback.Build(text)
}

func (p *Parser) parseAI(ctx context.Context, text string) (Intent, error) {
	if p.ai == nil {
		return Intent{}, ErrNoAI
	}
	key := p.fallback.Now().Format("2006-01-02") + "|" + strings.ToLower(strings.TrimSpace(text))
	if p.memo != nil {
		if intent, ok := p.memo.Get(key); ok {
			return intent, nil
		}
	}

	spec, err := p.askAI(ctx, text)
	if err != nil {
		return Intent{}, err
	}
	if spec == nil {
		return Intent{}, errors.New("ai returned no intent")
	}
	if !spec.Valid {
		return Intent{}, errors.New("ai intent not valid")
	}

	spec.Text = text
	if p.resolver != nil {
		spec.Aliases = p.resolver.Aliases()
	}
	intent := New(*spec)
	if p.memo != nil {
		p.memo.Set(key, intent)
	}
	return intent, nil
}

// askAI runs the AI call under the chain timeout. A panic inside the client
// counts as a failure.
func (p *Parser) askAI(ctx context.Context, text string) (*Spec, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var capsters, branches []string
	if p.resolver != nil {
		capsters = p.resolver.CapsterNames()
		branches = p.resolver.BranchNames()
	}

	type result struct {
		spec *Spec
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("ai parser panic: %v", r)}
			}
		}()
		spec, err := p.ai.ParseIntent(ctx, text, capsters, branches)
		done <- result{spec: spec, err: err}
	}()

	select {
	case r := <-done:
		return r.spec, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("ai parse: %w", ctx.Err())
	}
}
