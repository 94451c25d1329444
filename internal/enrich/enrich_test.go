package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinebot/internal/caption"
	"cinebot/internal/catalog"
	logx "cinebot/pkg/logx"
)

type fakeB struct {
	detailsErr, trailerErr, platErr error
}

func (f fakeB) Details(_ context.Context, id int) (catalog.Item, error) {
	if f.detailsErr != nil {
		return catalog.Item{}, f.detailsErr
	}
	return catalog.Item{Source: catalog.SourceTMDb, Fields: catalog.Fields{"id": float64(id), "title": "Heat", "release_date": "1995-12-15"}}, nil
}

func (f fakeB) Trailer(context.Context, int) (string, error) {
	if f.trailerErr != nil {
		return "", f.trailerErr
	}
	return "https://www.youtube.com/watch?v=abc", nil
}

func (f fakeB) Platforms(context.Context, int) ([]string, error) {
	if f.platErr != nil {
		return nil, f.platErr
	}
	return []string{"Netflix"}, nil
}

func TestByIDFull(t *testing.T) {
	rec, err := New(fakeB{}, logx.Nop()).ByID(context.Background(), 949)
	require.NoError(t, err)
	assert.Equal(t, "Heat", rec.Title)
	assert.Equal(t, "1995", rec.Year)
	assert.Equal(t, 949, rec.CatalogBID)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc", rec.Trailer)
	assert.Equal(t, []string{"Netflix"}, rec.Platforms)
}

func TestByIDToleratesOptionalFailures(t *testing.T) {
	boom := errors.New("boom")
	rec, err := New(fakeB{trailerErr: boom, platErr: catalog.ErrUpstreamUnavailable}, logx.Nop()).ByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, caption.Unknown, rec.Trailer)
	assert.Empty(t, rec.Platforms)
}

func TestByIDDetailsFailure(t *testing.T) {
	_, err := New(fakeB{detailsErr: catalog.ErrNotFound}, logx.Nop()).ByID(context.Background(), 1)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	var nilE *Enricher
	_, err = nilE.ByID(context.Background(), 1)
	assert.ErrorIs(t, err, catalog.ErrUpstreamUnavailable)
}
