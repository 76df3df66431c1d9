// Package freetext runs goal-directed extraction over a page's plain text.
// The model-backed capability is pluggable; when it is missing or fails,
// a pattern scan for contact and pricing facts stands in.
package freetext

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	textutil "github.com/law-makers/harvest/internal/utils/text"
)

// ErrUnavailable is returned by a capability that cannot serve requests
var ErrUnavailable = errors.New("free-text extraction unavailable")

// Capability extracts the fields a natural-language goal asks for
type Capability interface {
	Extract(ctx context.Context, text, goal string) (map[string]any, error)
}

// CapabilityFunc adapts a function to Capability
type CapabilityFunc func(ctx context.Context, text, goal string) (map[string]any, error)

func (f CapabilityFunc) Extract(ctx context.Context, text, goal string) (map[string]any, error) {
	return f(ctx, text, goal)
}

// Extract asks c for the goal's fields and falls back to Patterns when c
// is nil, unavailable or fails. A failed capability is logged, never
// returned, so the fallback result always stands.
func Extract(ctx context.Context, c Capability, text, goal string) map[string]any {
	if c != nil {
		out, err := c.Extract(ctx, text, goal)
		if err == nil && len(out) > 0 {
			return out
		}
		if err != nil && !errors.Is(err, ErrUnavailable) {
			log.Debug().Err(err).Str("goal", goal).Msg("free-text capability failed, using patterns")
		}
	}
	return Patterns(text)
}

// Patterns scans text for emails, phone numbers, prices and ratings
func Patterns(text string) map[string]any {
	out := map[string]any{}
	if v := textutil.Emails(text); len(v) > 0 {
		out["emails"] = toAny(v)
	}
	if v := textutil.Phones(text); len(v) > 0 {
		out["phones"] = toAny(v)
	}
	if v := textutil.Prices(text); len(v) > 0 {
		out["prices"] = toAny(v)
	}
	if v := textutil.Ratings(text); len(v) > 0 {
		ratings := make([]any, len(v))
		for i, r := range v {
			ratings[i] = r
		}
		out["ratings"] = ratings
	}
	return out
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
