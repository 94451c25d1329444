package caption

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinebot/internal/catalog"
	"cinebot/pkg/tgui"
)

func fields(t *testing.T, raw string) catalog.Fields {
	t.Helper()
	var f catalog.Fields
	require.NoError(t, json.Unmarshal([]byte(raw), &f))
	return f
}

func TestNormalizeOMDb(t *testing.T) {
	it := catalog.Item{Source: catalog.SourceOMDb, Fields: fields(t, `{
		"Title":"The Matrix","Year":"1999","imdbRating":"8.7","Genre":"Action, Sci-Fi",
		"Director":"Lana Wachowski, Lilly Wachowski","Plot":"A hacker learns the truth.",
		"Actors":"Keanu Reeves, Laurence Fishburne","Poster":"N/A","Response":"True"}`)}

	got := Normalize(it)
	want := MediaRecord{
		Title:    "The Matrix",
		Year:     "1999",
		Rating:   "8.7",
		Director: "Lana Wachowski, Lilly Wachowski",
		Plot:     "A hacker learns the truth.",
		Poster:   Unknown,
		Trailer:  Unknown,
		Source:   "omdb",
		Genres:   []string{"Action", "Sci-Fi"},
		Cast:     []string{"Keanu Reeves", "Laurence Fishburne"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Normalize mismatch (-want +got):\n%s", diff)
	}

	out := Render(got)
	assert.Contains(t, out, "THE MATRIX")
	assert.Contains(t, out, "1999")
	assert.Contains(t, out, "<b>Genre:</b> Action, Sci-Fi")
}

func TestNormalizeTMDb(t *testing.T) {
	it := catalog.Item{Source: catalog.SourceTMDb, ImageBase: "https://img/w780/", Fields: fields(t, `{
		"id":603,"title":"The Matrix","release_date":"1999-03-30","vote_average":8.216,
		"genres":[{"id":28,"name":"Action"},{"name":"Science Fiction"}],
		"overview":"Set in the 22nd century.","backdrop_path":"/bd.jpg",
		"credits":{"crew":[{"job":"Producer","name":"Joel Silver"},{"job":"Director","name":"Lana Wachowski"}],
		           "cast":[{"name":"A"},{"name":"B"},{"name":"C"},{"name":"D"},{"name":"E"},{"name":"F"},{"name":"G"},{"name":"H"},{"name":"I"}]}}`)}

	got := Normalize(it)
	assert.Equal(t, "The Matrix", got.Title)
	assert.Equal(t, "1999", got.Year)
	assert.Equal(t, "8.2", got.Rating)
	assert.Equal(t, "Lana Wachowski", got.Director)
	assert.Equal(t, []string{"Action", "Science Fiction"}, got.Genres)
	assert.Len(t, got.Cast, castLimit)
	assert.Equal(t, "https://img/w780/bd.jpg", got.Poster)
	assert.Equal(t, 603, got.CatalogBID)
}

func TestNormalizeMalformedShapes(t *testing.T) {
	cases := []string{
		`{}`,
		`{"genres":"Action","credits":[1,2],"release_date":"99"}`,
		`{"genres":[1,"x",null],"credits":{"cast":{"name":"x"},"crew":"y"}}`,
		`{"Title":null,"Year":12,"Genre":["Action"]}`,
	}
	for _, raw := range cases {
		t.Run(raw, func(t *testing.T) {
			rec := Normalize(catalog.Item{Source: catalog.SourceTMDb, Fields: fields(t, raw)})
			assert.Equal(t, Unknown, rec.Title)
			assert.Equal(t, Unknown, rec.Director)
			assert.Empty(t, rec.Genres)

			out := SafeRender(rec)
			assert.NotEmpty(t, out)
			assert.NotContains(t, strings.ToLower(out), "error")
		})
	}

	rec := Normalize(catalog.Item{})
	assert.Equal(t, Unknown, rec.Source)
	assert.NotEmpty(t, Render(rec))
}

func TestRenderEscapes(t *testing.T) {
	rec := MediaRecord{Title: "Tom & Jerry <3", Plot: "<script>", Cast: []string{"A&B"}}
	out := Render(rec)
	assert.Contains(t, out, "TOM &amp; JERRY &lt;3")
	assert.Contains(t, out, "<i>&lt;script&gt;</i>")
	assert.Contains(t, out, "A&amp;B")
	assert.NotContains(t, out, "<script>")
}

func TestRenderCapsLength(t *testing.T) {
	rec := MediaRecord{
		Title:     "Long",
		Year:      "2001",
		Plot:      strings.Repeat("word ", 400),
		Cast:      []string{strings.Repeat("x", 300)},
		Platforms: []string{"Netflix"},
	}
	out := Render(rec)
	assert.LessOrEqual(t, utf8.RuneCountInString(out), tgui.MaxCaptionLen)
	assert.Contains(t, out, "LONG")
	assert.Contains(t, out, "…")
	assert.Contains(t, out, "Netflix")

	rec.Platforms = []string{strings.Repeat("p", 2000)}
	out = Render(rec)
	assert.LessOrEqual(t, utf8.RuneCountInString(out), tgui.MaxCaptionLen)
	assert.Equal(t, "🎬 <b><u>LONG</u></b>", out)
}

func TestButtons(t *testing.T) {
	links := Links{Server1: "https://s1", Server2: "https://s2"}
	m := Buttons(MediaRecord{Trailer: "https://yt/x"}, links)
	require.NotNil(t, m)
	require.Len(t, m.Rows, 2)
	assert.Equal(t, "▶️ Watch Trailer", m.Rows[0][0].Text)
	assert.Len(t, m.Rows[1], 2)

	m = Buttons(MediaRecord{Trailer: Unknown, Link: "https://t.me/c/1"}, links)
	require.Len(t, m.Rows, 2)
	assert.Equal(t, "https://t.me/c/1", m.Rows[0][0].URL)

	assert.Nil(t, Buttons(MediaRecord{Trailer: Unknown}, Links{}))
}
