// Package ingest turns a batch of candidate tag names into stored, categorized
// tags. Names already known are never sent to the classifier again.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cognicore/tagvault/internal/logger"
	"github.com/cognicore/tagvault/pkg/tagvault/classify"
	"github.com/cognicore/tagvault/pkg/tagvault/internalerr"
	"github.com/cognicore/tagvault/pkg/tagvault/store"
	"github.com/cognicore/tagvault/pkg/tagvault/taxonomy"
)

// Classifier is the part of classify.Classifier the service depends on.
type Classifier interface {
	Classify(ctx context.Context, tags []string) classify.Result
}

// Result summarizes one ingestion batch.
type Result struct {
	// Received counts non-blank candidates, duplicates included.
	Received int `json:"received"`
	// New counts distinct candidates that were not stored before the batch.
	New int `json:"new"`
	// Added counts records this batch actually created.
	Added int `json:"added"`
	// Fallback is set when the classifier could not be used for the batch.
	Fallback bool `json:"fallback"`
}

// Service runs the ingestion pipeline against one store and classifier.
type Service struct {
	store      store.Store
	classifier Classifier
	norm       *taxonomy.Normalizer
	log        *logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithNormalizer sets the normalizer applied to labels before they are stored.
func WithNormalizer(n *taxonomy.Normalizer) Option {
	return func(s *Service) {
		if n != nil {
			s.norm = n
		}
	}
}

// New creates an ingestion service.
func New(st store.Store, cl Classifier, opts ...Option) *Service {
	s := &Service{
		store:      st,
		classifier: cl,
		norm:       taxonomy.DefaultNormalizer(),
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest stores every candidate that is not yet known, classifying the new
// ones with a single classifier call. A storage failure on one tag does not
// stop the others; the failures are returned together with the partial result.
func (s *Service) Ingest(ctx context.Context, candidates []string) (Result, error) {
	batch := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if strings.TrimSpace(c) == "" {
			continue
		}
		batch = append(batch, c)
	}
	if len(batch) == 0 {
		return Result{}, fmt.Errorf("%w: no tags provided", internalerr.ErrInvalidInput)
	}

	res := Result{Received: len(batch)}

	existing, err := s.store.ExistingNames(ctx, batch)
	if err != nil {
		return res, markStorage(err)
	}

	newTags := make([]string, 0, len(batch))
	seen := make(map[string]struct{}, len(batch))
	for _, name := range batch {
		if _, ok := existing[name]; ok {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		newTags = append(newTags, name)
	}
	res.New = len(newTags)

	if len(newTags) == 0 {
		s.log.Info("ingested tags", "received", res.Received, "new", 0, "added", 0)
		return res, nil
	}

	// Classification and inserts finish even if the caller goes away. The
	// classifier is still bounded by its own timeout.
	work := context.WithoutCancel(ctx)

	classified := s.classifier.Classify(work, newTags)
	res.Fallback = classified.IsFallback()

	var errs []error
	for _, name := range newTags {
		inserted, err := s.store.InsertIfAbsent(work, name, s.category(classified.Categories, name))
		if err != nil {
			s.log.Error("failed to store tag", "tag", name, "error", err)
			errs = append(errs, err)
			continue
		}
		if inserted {
			res.Added++
		}
	}

	s.log.Info("ingested tags",
		"received", res.Received,
		"new", res.New,
		"added", res.Added,
		"fallback", res.Fallback,
		"failed", len(errs),
	)

	if len(errs) > 0 {
		return res, markStorage(errors.Join(errs...))
	}
	return res, nil
}

// category picks the stored label for name: the classifier's label if it is
// a taxonomy entry, a normalized form of it otherwise, the fallback if absent.
func (s *Service) category(mapping map[string]string, name string) string {
	label, ok := mapping[name]
	if !ok {
		return taxonomy.Fallback
	}
	if s.norm.Taxonomy().Contains(label) {
		return label
	}
	return s.norm.Normalize(label)
}

func markStorage(err error) error {
	if errors.Is(err, internalerr.ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", internalerr.ErrStorage, err)
}
