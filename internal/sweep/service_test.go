package sweep_test

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/rovercam/rovercam/internal/blob"
	"github.com/rovercam/rovercam/internal/sweep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	slugs map[string]struct{}
}

func (catalog *fakeCatalog) KnownSlugs() (map[string]struct{}, error) {
	return catalog.slugs, nil
}

func putAgedBlob(t *testing.T, blobs *blob.Store, slug string, age time.Duration) {
	_, err := blobs.Put(slug, ".mp4", bytes.NewReader([]byte("content")))
	require.NoError(t, err)

	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(blobs.Path(slug, ".mp4"), mtime, mtime))
}

func Test_SweepOnce_RemovesOnlyAgedOrphans(t *testing.T) {
	blobs, err := blob.NewStore(t.TempDir())
	require.NoError(t, err)

	putAgedBlob(t, blobs, "knownclip", time.Hour*2)
	putAgedBlob(t, blobs, "agedorphan", time.Hour*2)
	putAgedBlob(t, blobs, "freshorphan", time.Minute)

	catalog := &fakeCatalog{slugs: map[string]struct{}{"knownclip": {}}}
	service := sweep.New(sweep.Config{IntervalMinutes: 30, MinAgeMinutes: 60}, blobs, catalog)

	removed, err := service.SweepOnce()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	// The referenced blob and the still-fresh orphan both survive; the
	// fresh orphan may belong to an upload whose record insert is pending.
	_, err = blobs.SizeOf("knownclip", ".mp4")
	assert.NoError(t, err)
	_, err = blobs.SizeOf("freshorphan", ".mp4")
	assert.NoError(t, err)
	_, err = blobs.SizeOf("agedorphan", ".mp4")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func Test_SweepOnce_EmptyStore(t *testing.T) {
	blobs, err := blob.NewStore(t.TempDir())
	require.NoError(t, err)

	service := sweep.New(sweep.Config{IntervalMinutes: 30, MinAgeMinutes: 60}, blobs, &fakeCatalog{slugs: map[string]struct{}{}})

	removed, err := service.SweepOnce()
	require.NoError(t, err)
	assert.Zero(t, removed)
}
