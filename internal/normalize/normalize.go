package normalize

import (
	"fmt"
	"strings"

	"github.com/seawatch/threat-monitor/backend/internal/models"
)

// Sentinel defaults used when a candidate omits a field entirely.
const (
	DefaultTitle         = "Unknown Threat"
	DefaultRegion        = "Unknown"
	DefaultCategory      = "Unknown"
	DefaultDescription   = "No description available"
	DefaultImpact        = "Impact unknown"
	DefaultDateMentioned = "Not specified"
)

// ValidationError marks a candidate whose fields cannot be coerced into the
// canonical shape. The candidate is dropped; its siblings are unaffected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid candidate field %q: %s", e.Field, e.Reason)
}

// Candidate coerces a loosely-typed candidate into a canonical ThreatRecord
// (without id or created_at, which the primary store assigns).
//
// Per-field rules:
//   - missing string fields are filled with documented defaults, never an error
//   - countries: null stays null, [] stays [], a bare string is promoted to a
//     one-element list, a list is filtered to non-empty strings; filtering a
//     non-empty list down to nothing yields null
//   - source_urls: same filtering, but a bare string is an error (no promotion)
//
// Candidate is pure and idempotent: applying it to its own output yields the
// same record.
func Candidate(raw models.RawCandidate) (models.ThreatRecord, error) {
	var rec models.ThreatRecord
	for _, f := range []struct {
		key      string
		dst      *string
		fallback string
	}{
		{"title", &rec.Title, DefaultTitle},
		{"region", &rec.Region, DefaultRegion},
		{"category", &rec.Category, DefaultCategory},
		{"description", &rec.Description, DefaultDescription},
		{"potential_impact", &rec.PotentialImpact, DefaultImpact},
		{"date_mentioned", &rec.DateMentioned, DefaultDateMentioned},
	} {
		s, err := stringField(raw, f.key, f.fallback)
		if err != nil {
			return models.ThreatRecord{}, err
		}
		*f.dst = s
	}

	countries, err := coerceCountries(raw["countries"])
	if err != nil {
		return models.ThreatRecord{}, err
	}
	rec.Countries = countries

	urls, err := coerceSourceURLs(raw)
	if err != nil {
		return models.ThreatRecord{}, err
	}
	rec.SourceURLs = urls

	return rec, nil
}

func stringField(raw models.RawCandidate, key, fallback string) (string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return fallback, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &ValidationError{Field: key, Reason: fmt.Sprintf("expected string, got %T", v)}
	}
	return s, nil
}

func coerceCountries(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return []string{val}, nil
	default:
		list, isNull, ok := anyList(v)
		if !ok {
			return nil, &ValidationError{Field: "countries", Reason: fmt.Sprintf("unsupported type %T", v)}
		}
		if isNull {
			return nil, nil
		}
		return filterStrings(list), nil
	}
}

func coerceSourceURLs(raw models.RawCandidate) ([]string, error) {
	v, ok := raw["source_urls"]
	if !ok {
		// Absent defaults to an explicitly empty list.
		return []string{}, nil
	}
	if v == nil {
		return nil, nil
	}
	list, isNull, ok := anyList(v)
	if !ok {
		return nil, &ValidationError{Field: "source_urls", Reason: fmt.Sprintf("unsupported type %T", v)}
	}
	if isNull {
		return nil, nil
	}
	return filterStrings(list), nil
}

// anyList accepts both decoded-JSON lists ([]any) and already-canonical
// []string values, so re-normalizing canonical data is a no-op. A typed nil
// slice is reported as null, not as an empty list.
func anyList(v any) (list []any, isNull, ok bool) {
	switch val := v.(type) {
	case []any:
		return val, val == nil, true
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, val == nil, true
	default:
		return nil, false, false
	}
}

// filterStrings keeps non-blank string elements. An empty input list stays an
// empty list; a non-empty list filtered down to nothing becomes nil.
func filterStrings(list []any) []string {
	if len(list) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
