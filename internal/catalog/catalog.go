// Package catalog queries the two title catalogs: OMDb (flat, exact title)
// and TMDb (nested, ranked search plus enrichment endpoints).
//
// Every call has its own timeout and never retries. Transport failures,
// timeouts and non-2xx answers surface as ErrUpstreamUnavailable; an explicit
// absence is ErrNotFound. Callers treat both as "not found".
package catalog

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrNotFound            = errors.New("catalog: not found")
	ErrUpstreamUnavailable = errors.New("catalog: upstream unavailable")
)

type Source string

const (
	SourceOMDb Source = "omdb"
	SourceTMDb Source = "tmdb"
)

// Item is one raw catalog record. Fields is the decoded JSON object as the
// catalog returned it; a record never mixes sources.
type Item struct {
	Source    Source
	Fields    Fields
	ImageBase string
}

// ID returns the TMDb numeric id, or 0.
func (it Item) ID() int {
	if it.Source != SourceTMDb {
		return 0
	}
	n, _ := it.Fields.Num("id")
	return int(n)
}

// Fields is a decoded JSON object with type-checked accessors.
// Wrong shapes read as absent.
type Fields map[string]any

func (f Fields) Str(key string) string {
	switch v := f[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func (f Fields) Num(key string) (float64, bool) {
	switch v := f[key].(type) {
	case float64:
		return v, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func (f Fields) Map(key string) Fields {
	if m, ok := f[key].(map[string]any); ok {
		return Fields(m)
	}
	return nil
}

// Objects returns the elements of a JSON array that are objects.
func (f Fields) Objects(key string) []Fields {
	arr, ok := f[key].([]any)
	if !ok {
		return nil
	}
	out := make([]Fields, 0, len(arr))
	for _, v := range arr {
		if m, ok := v.(map[string]any); ok {
			out = append(out, Fields(m))
		}
	}
	return out
}

// Names collects the "name" of every object in the array at key.
func (f Fields) Names(key string) []string {
	var out []string
	for _, o := range f.Objects(key) {
		if n := o.Str("name"); n != "" {
			out = append(out, n)
		}
	}
	return out
}
