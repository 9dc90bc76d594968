// Package classify maps batches of tags onto the taxonomy with one call to an
// external text generator. Classification failures never escape: they turn
// into a Fallback result with every tag in the default category.
package classify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cognicore/tagvault/internal/logger"
	"github.com/cognicore/tagvault/pkg/tagvault/internalerr"
	"github.com/cognicore/tagvault/pkg/tagvault/taxonomy"
)

// DefaultTimeout bounds a single generator call.
const DefaultTimeout = 30 * time.Second

// Generator produces free text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Outcome tells whether the mapping came from the classifier or the fallback.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeFallback
)

func (o Outcome) String() string {
	if o == OutcomeFallback {
		return "fallback"
	}
	return "ok"
}

// Result is the classification of one batch.
type Result struct {
	Categories map[string]string
	Outcome    Outcome
	// Err is the contained cause when Outcome is OutcomeFallback.
	Err error
}

// IsFallback reports whether every category is the default one because
// the classifier could not be used.
func (r Result) IsFallback() bool { return r.Outcome == OutcomeFallback }

// Options tune a Classifier.
type Options struct {
	Encoding Encoding
	Timeout  time.Duration
	Logger   *logger.Logger
}

// Classifier is the adapter between tag batches and a Generator.
type Classifier struct {
	gen     Generator
	norm    *taxonomy.Normalizer
	enc     Encoding
	timeout time.Duration
	log     *logger.Logger
}

// New creates a classifier. A nil gen yields a classifier that always falls back.
func New(gen Generator, norm *taxonomy.Normalizer, opts Options) *Classifier {
	if norm == nil {
		norm = taxonomy.DefaultNormalizer()
	}
	if opts.Encoding == "" {
		opts.Encoding = EncodingIndex
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Classifier{
		gen:     gen,
		norm:    norm,
		enc:     opts.Encoding,
		timeout: opts.Timeout,
		log:     opts.Logger,
	}
}

// Classify maps tags to taxonomy labels. It never returns an error; check
// Result.Outcome for whether the fallback was used.
func (c *Classifier) Classify(ctx context.Context, tags []string) Result {
	if len(tags) == 0 {
		return Result{Categories: map[string]string{}, Outcome: OutcomeOK}
	}
	if c.gen == nil {
		return c.fallback(tags, errors.New("no generator configured"))
	}

	prompt := BuildPrompt(c.norm.Taxonomy(), c.enc, tags)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.log.Debug("sending tags for classification", "tags", len(tags), "encoding", string(c.enc))
	start := time.Now()
	text, err := c.gen.Generate(callCtx, prompt)
	if err != nil {
		return c.fallback(tags, fmt.Errorf("generate: %w", err))
	}

	raw, err := parseResponse(text)
	if err != nil {
		return c.fallback(tags, fmt.Errorf("parse response: %w", err))
	}

	categories := c.match(tags, raw)
	c.log.Info("classified tags",
		"tags", len(tags),
		"matched", len(categories),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return Result{Categories: categories, Outcome: OutcomeOK}
}

func (c *Classifier) fallback(tags []string, cause error) Result {
	err := fmt.Errorf("%w: %w", internalerr.ErrClassification, cause)
	c.log.Warn("classification failed, using fallback category",
		"tags", len(tags),
		"category", taxonomy.Fallback,
		"error", err,
	)
	categories := make(map[string]string, len(tags))
	for _, tag := range tags {
		categories[tag] = taxonomy.Fallback
	}
	return Result{Categories: categories, Outcome: OutcomeFallback, Err: err}
}

// match keeps only keys that name a requested tag: exact keys first, then
// keys that differ only in case or surrounding space.
func (c *Classifier) match(tags []string, raw map[string]any) map[string]string {
	requested := make(map[string]struct{}, len(tags))
	folded := make(map[string]string, len(tags))
	for _, tag := range tags {
		requested[tag] = struct{}{}
		key := foldKey(tag)
		if _, taken := folded[key]; !taken {
			folded[key] = tag
		}
	}

	out := make(map[string]string, len(tags))
	var loose []string
	for key, value := range raw {
		if _, ok := requested[key]; ok {
			out[key] = c.norm.Normalize(value)
			continue
		}
		loose = append(loose, key)
	}

	sort.Strings(loose)
	for _, key := range loose {
		tag, ok := folded[foldKey(key)]
		if !ok {
			continue
		}
		if _, done := out[tag]; done {
			continue
		}
		out[tag] = c.norm.Normalize(raw[key])
	}

	if missing := len(tags) - len(out); missing > 0 {
		c.log.Debug("classifier omitted tags", "missing", missing)
	}
	return out
}

func foldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
