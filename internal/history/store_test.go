package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "weft.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordVisitUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordVisit(ctx, "https://example.com", "Example"))
	require.NoError(t, s.RecordVisit(ctx, "https://example.com", ""))
	require.NoError(t, s.RecordVisit(ctx, "https://example.com", "Example v2"))

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].VisitCount)
	assert.Equal(t, "Example v2", entries[0].Title, "empty titles must not clobber a stored one")
}

func TestStore_RecentOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordVisit(ctx, "https://first.test", "first"))
	require.NoError(t, s.RecordVisit(ctx, "https://second.test", "second"))

	// Re-visiting the first entry makes it the most recent again.
	require.NoError(t, s.RecordVisit(ctx, "https://first.test", "first"))

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "https://first.test", entries[0].URL)
}

func TestStore_ZoomRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Zoom(ctx, "https://example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetZoom(ctx, "https://example.com", 1.5))
	require.NoError(t, s.SetZoom(ctx, "https://example.com", 1.25))

	factor, ok, err := s.Zoom(ctx, "https://example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.25, factor)
}

func TestStore_PruneByCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, url := range []string{"https://a.test", "https://b.test", "https://c.test"} {
		require.NoError(t, s.RecordVisit(ctx, url, ""))
	}

	require.NoError(t, s.Prune(ctx, 2, 0))

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestStore_PruneByAgeKeepsFreshEntries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordVisit(ctx, "https://fresh.test", ""))
	require.NoError(t, s.Prune(ctx, 0, 24*time.Hour))

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}
