package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "cinebot/pkg/logx"
)

func openDrivers(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	out := map[string]Store{}
	for _, d := range []string{"sqlite", "file"} {
		st, err := Open(Config{Driver: d, Path: filepath.Join(dir, d, "cinebot.db")}, logx.Nop())
		require.NoError(t, err, d)
		t.Cleanup(func() { _ = st.Close() })
		out[d] = st
	}
	return out
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, st := range openDrivers(t) {
		t.Run(name, func(t *testing.T) {
			for i, title := range []string{"Coolie", "War 2", "Kingdom"} {
				_, err := st.Upsert(ctx, Entry{Title: title, Category: "Bollywood", InsertedAt: base.Add(time.Duration(i) * time.Hour)})
				require.NoError(t, err)
			}
			_, err := st.Upsert(ctx, Entry{Title: "Heat", Category: "classics", CatalogBID: 949})
			require.NoError(t, err)

			recent, err := st.Recent(ctx, "bollywood", 2)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, "Kingdom", recent[0].Title)
			assert.Equal(t, "War 2", recent[1].Title)

			all, err := st.Recent(ctx, "", 10)
			require.NoError(t, err)
			assert.Len(t, all, 4)

			e, err := st.FindByTitle(ctx, "  heat ")
			require.NoError(t, err)
			assert.Equal(t, 949, e.CatalogBID)
			assert.NotEmpty(t, e.ID)

			// same title+category updates in place and keeps the id
			up, err := st.Upsert(ctx, Entry{Title: "HEAT", Category: "Classics", Link: "https://t.me/c/1/2"})
			require.NoError(t, err)
			assert.Equal(t, e.ID, up.ID)
			assert.Equal(t, 949, up.CatalogBID)
			assert.Equal(t, "https://t.me/c/1/2", up.Link)

			_, err = st.FindByTitle(ctx, "Nope")
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = st.Upsert(ctx, Entry{Title: "   "})
			assert.Error(t, err)

			require.NoError(t, st.AppendAudit(ctx, AuditEntry{RunID: "r1", Kind: "broadcast", ChatID: -100, EntryID: e.ID, Title: "Heat", OK: true}))
		})
	}
}

func TestFileStoreReloadsSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	_, err = st.Upsert(ctx, Entry{Title: "Coolie", Category: "movies"})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()
	e, err := st.FindByTitle(ctx, "coolie")
	require.NoError(t, err)
	assert.Equal(t, "movies", e.Category)
}

func TestDisabledAndUnknownDriver(t *testing.T) {
	st, err := Open(Config{Driver: "none"}, logx.Nop())
	require.NoError(t, err)
	_, err = st.Recent(context.Background(), "", 5)
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = Open(Config{Driver: "mongo"}, logx.Nop())
	assert.Error(t, err)
}
