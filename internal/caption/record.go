// Package caption turns raw catalog items into a MediaRecord and renders
// the Telegram HTML caption and inline buttons for it.
package caption

import (
	"strconv"
	"strings"

	"cinebot/internal/catalog"
)

// Unknown marks a field neither catalog could supply.
const Unknown = "-"

const castLimit = 8

// MediaRecord is the normalized view of a title. String fields are never
// empty; they hold Unknown instead.
type MediaRecord struct {
	Title    string
	Year     string
	Rating   string
	Director string
	Plot     string
	Poster   string
	Trailer  string
	Source   string
	Genres   []string
	Cast     []string
	// Platforms are flat-rate streaming providers in the configured region.
	Platforms []string

	// CatalogBID is the TMDb id when known, used to enrich and for "Next".
	CatalogBID int
	// Link is an optional cross-reference (e.g. a channel post for the title).
	Link string
}

// Has reports whether v carries a real value.
func Has(v string) bool { return v != "" && v != Unknown }

// Normalize maps an item from either catalog onto a MediaRecord. Each field
// tries the OMDb key, then the TMDb key, then falls back to Unknown.
// Unexpected JSON shapes read as absent.
func Normalize(it catalog.Item) MediaRecord {
	f := it.Fields
	rec := MediaRecord{
		Title:    first(omdb(f, "Title"), f.Str("title"), f.Str("name")),
		Year:     first(omdb(f, "Year"), prefix(f.Str("release_date"), 4)),
		Rating:   first(omdb(f, "imdbRating"), rating(f)),
		Director: first(omdb(f, "Director"), director(f)),
		Plot:     first(omdb(f, "Plot"), f.Str("overview")),
		Poster:   first(omdb(f, "Poster"), poster(it)),
		Source:   first(string(it.Source)),
		Genres:   firstList(splitList(omdb(f, "Genre")), f.Names("genres")),
		Cast:     firstList(splitList(omdb(f, "Actors")), castNames(f)),
	}
	rec.CatalogBID = it.ID()
	if len(rec.Cast) > castLimit {
		rec.Cast = rec.Cast[:castLimit]
	}
	rec.Trailer = Unknown
	return rec
}

// omdb reads an OMDb field; OMDb spells missing values "N/A".
func omdb(f catalog.Fields, key string) string {
	v := f.Str(key)
	if strings.EqualFold(v, "N/A") {
		return ""
	}
	return v
}

func first(vs ...string) string {
	for _, v := range vs {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return Unknown
}

func firstList(ls ...[]string) []string {
	for _, l := range ls {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}

func prefix(s string, n int) string {
	if len(s) < n {
		return ""
	}
	return s[:n]
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func rating(f catalog.Fields) string {
	v, ok := f.Num("vote_average")
	if !ok || v <= 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func director(f catalog.Fields) string {
	var names []string
	for _, c := range f.Map("credits").Objects("crew") {
		if c.Str("job") == "Director" {
			if n := c.Str("name"); n != "" {
				names = append(names, n)
			}
		}
	}
	return strings.Join(names, ", ")
}

func castNames(f catalog.Fields) []string {
	return f.Map("credits").Names("cast")
}

func poster(it catalog.Item) string {
	path := it.Fields.Str("backdrop_path")
	if path == "" {
		path = it.Fields.Str("poster_path")
	}
	if path == "" || it.ImageBase == "" {
		return ""
	}
	return strings.TrimRight(it.ImageBase, "/") + "/" + strings.TrimLeft(path, "/")
}
