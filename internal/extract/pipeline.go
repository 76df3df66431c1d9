// Package extract turns one page capture into a record by running every
// extraction strategy and merging their output.
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/harvest/internal/engine"
	"github.com/law-makers/harvest/internal/extract/embedded"
	"github.com/law-makers/harvest/internal/extract/freetext"
	"github.com/law-makers/harvest/internal/extract/generic"
	"github.com/law-makers/harvest/internal/extract/network"
	"github.com/law-makers/harvest/internal/extract/sites"
	"github.com/law-makers/harvest/pkg/models"
)

// Options tune one extraction
type Options struct {
	// SiteHint forces a site extractor by name
	SiteHint string
	// Goal enables free-text extraction
	Goal string
}

// Strategy is one independent way of reading a capture
type Strategy struct {
	Name string
	Run  func(ctx context.Context, capture *models.PageCapture, opts Options) (map[string]any, error)
}

// DefaultStrategies lists the strategies in increasing specificity. Later
// strategies win scalar conflicts when merged.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "generic", Run: func(_ context.Context, c *models.PageCapture, _ Options) (map[string]any, error) {
			return generic.Extract(c)
		}},
		{Name: "embedded", Run: func(_ context.Context, c *models.PageCapture, _ Options) (map[string]any, error) {
			return embedded.Extract(c)
		}},
		{Name: "network", Run: func(_ context.Context, c *models.PageCapture, _ Options) (map[string]any, error) {
			return network.Extract(c)
		}},
		{Name: "sites", Run: func(_ context.Context, c *models.PageCapture, o Options) (map[string]any, error) {
			return sites.Extract(c, o.SiteHint)
		}},
	}
}

// Pipeline runs the strategies over a capture
type Pipeline struct {
	strategies []Strategy
	freetext   freetext.Capability
}

// New creates a pipeline with the default strategies. capability may be
// nil, in which case goals are served by pattern scanning.
func New(capability freetext.Capability) *Pipeline {
	return &Pipeline{strategies: DefaultStrategies(), freetext: capability}
}

// NewWithStrategies creates a pipeline over a custom strategy list
func NewWithStrategies(capability freetext.Capability, strategies ...Strategy) *Pipeline {
	return &Pipeline{strategies: strategies, freetext: capability}
}

// Extract runs every strategy and merges their output into one record.
// A failing strategy contributes an ExtractionError and never stops the
// others. The record always carries the capture's URL; when nothing was
// found it is marked as having no data.
func (p *Pipeline) Extract(ctx context.Context, capture *models.PageCapture, opts Options) (models.Record, []error) {
	var errs []error
	merged := map[string]any{}

	for _, s := range p.strategies {
		if ctx.Err() != nil {
			errs = append(errs, engine.ExtractionError(s.Name, ctx.Err()))
			break
		}
		start := time.Now()
		out, err := run(ctx, s, capture, opts)
		if err != nil {
			log.Debug().Err(err).Str("strategy", s.Name).Str("url", capture.URL).Msg("strategy failed")
			errs = append(errs, err)
			continue
		}
		log.Debug().
			Str("strategy", s.Name).
			Str("url", capture.URL).
			Int("fields", len(out)).
			Int64("elapsed_ms", time.Since(start).Milliseconds()).
			Msg("strategy finished")
		merged = Merge(merged, out)
	}

	if opts.Goal != "" && ctx.Err() == nil {
		if text, _ := merged["full_text"].(string); text != "" {
			merged = Fill(merged, freetext.Extract(ctx, p.freetext, text, opts.Goal))
		}
	}

	record := models.Record(merged)
	if record.Empty() {
		return models.EmptyRecord(capture.URL), errs
	}
	record[models.FieldURL] = capture.URL
	if capture.FinalURL != "" && capture.FinalURL != capture.URL {
		record["final_url"] = capture.FinalURL
	}
	return record, errs
}

// run calls one strategy, converting errors and panics into
// ExtractionErrors
func run(ctx context.Context, s Strategy, capture *models.PageCapture, opts Options) (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, engine.ExtractionError(s.Name, fmt.Errorf("panic: %v", r))
		}
	}()
	out, err = s.Run(ctx, capture, opts)
	if err != nil {
		return nil, engine.ExtractionError(s.Name, err)
	}
	return out, nil
}
